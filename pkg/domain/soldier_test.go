package domain

import (
	"errors"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func TestNewSoldierDefaultsPerVariant(t *testing.T) {
	s, err := NewStandard("John")
	if err != nil {
		t.Fatalf("new standard: %v", err)
	}
	if s.Rank() != RankPrivate || s.Variant() != VariantStandard {
		t.Fatalf("unexpected standard defaults: %s %s", s.Variant(), s.Rank())
	}
	e, err := NewEngineer("Joe")
	if err != nil {
		t.Fatalf("new engineer: %v", err)
	}
	if e.Rank() != RankCorporal || e.Variant() != VariantEngineer {
		t.Fatalf("unexpected engineer defaults: %s %s", e.Variant(), e.Rank())
	}
	if r, ok := DefaultRank(VariantEngineer); !ok || r != EngineerDefaultRank {
		t.Fatalf("unexpected engineer default rank lookup")
	}
	if _, ok := DefaultRank("unknown"); ok {
		t.Fatalf("expected unknown variant default lookup to fail")
	}
}

func TestNewSoldierExplicitRankAndInfo(t *testing.T) {
	s, err := NewSoldier(VariantEngineer, "Ada", WithRank(RankMajor), WithExtendedInfo("bridges"))
	if err != nil {
		t.Fatalf("new soldier: %v", err)
	}
	if s.Rank() != RankMajor {
		t.Fatalf("expected Major, got %s", s.Rank())
	}
	if v, ok := s.ExtendedInfo(); !ok || v != "bridges" {
		t.Fatalf("unexpected specialization %q %v", v, ok)
	}
	plain, _ := NewStandard("Bob")
	if _, ok := plain.ExtendedInfo(); ok {
		t.Fatalf("expected absent home address")
	}
}

func TestNewSoldierValidation(t *testing.T) {
	if _, err := NewStandard(""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := NewStandard("   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := NewStandard("X", WithRank(Rank(99))); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad rank, got %v", err)
	}
	if _, err := NewSoldier("cavalry", "X"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown variant, got %v", err)
	}
}

func TestSetNameRejectsEmpty(t *testing.T) {
	s, _ := NewStandard("John")
	if err := s.SetName(""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.Name() != "John" {
		t.Fatalf("name changed on rejected rename: %q", s.Name())
	}
	if err := s.SetName("Jack"); err != nil || s.Name() != "Jack" {
		t.Fatalf("rename failed: %v", err)
	}
	if err := s.SetRank(Rank(12)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for rank, got %v", err)
	}
}

func TestCalculatePayTables(t *testing.T) {
	for i, r := range Ranks() {
		s, _ := NewStandard("S", WithRank(r))
		want := decimal.NewFromInt(int64(1000 * (i + 1)))
		if !s.CalculatePay().Equal(want) {
			t.Fatalf("standard pay at %s: want %s got %s", r, want, s.CalculatePay())
		}
		e, _ := NewEngineer("E", WithRank(r))
		if !e.CalculatePay().Equal(decimal.NewFromInt(3500)) {
			t.Fatalf("engineer pay at %s: got %s", r, e.CalculatePay())
		}
	}
	sgt, _ := NewStandard("Sgt", WithRank(RankSergeant))
	if sgt.CalculatePay().IntPart() != 3000 {
		t.Fatalf("expected sergeant pay 3000")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s, _ := NewStandard("John", WithExtendedInfo("Main St"))
	cp := s.Clone()
	cp.SetExtendedInfo("Elm St")
	_ = cp.SetName("Other")
	if v, _ := s.ExtendedInfo(); v != "Main St" || s.Name() != "John" {
		t.Fatalf("clone mutation leaked into original")
	}
	if !Equal(s, s.Clone()) {
		t.Fatalf("expected clone to be equal")
	}
}

func TestTaggedRecordRoundTrip(t *testing.T) {
	e, _ := NewEngineer("Joe", WithRank(RankCaptain), WithExtendedInfo("radio"))
	raw, err := MarshalSoldier(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if fields["type"] != "engineer" || fields["rank"] != "Captain" || fields["specialization"] != "radio" {
		t.Fatalf("unexpected record %s", raw)
	}
	back, err := UnmarshalSoldier(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := back.(*Engineer); !ok {
		t.Fatalf("expected *Engineer, got %T", back)
	}
	if !Equal(e, back) {
		t.Fatalf("round trip mismatch: %v vs %v", e, back)
	}

	s, _ := NewStandard("John")
	raw, _ = MarshalSoldier(s)
	if strings.Contains(string(raw), "home_address") {
		t.Fatalf("expected absent home address to be omitted: %s", raw)
	}
	back, err = UnmarshalSoldier(raw)
	if err != nil {
		t.Fatalf("unmarshal standard: %v", err)
	}
	if _, ok := back.(*Standard); !ok || !Equal(s, back) {
		t.Fatalf("standard round trip mismatch")
	}
}

func TestUnmarshalSoldierRejectsBadRecords(t *testing.T) {
	cases := map[string]string{
		"unknown tag": `{"type":"cavalry","name":"X","rank":"Private"}`,
		"missing tag": `{"name":"X","rank":"Private"}`,
		"bad rank":    `{"type":"standard","name":"X","rank":"Admiral"}`,
		"empty name":  `{"type":"engineer","name":"","rank":"Private"}`,
		"not json":    `{"type":`,
		"no rank":     `{"type":"standard","name":"X"}`,
		"no eng rank": `{"type":"engineer","name":"X","specialization":"radios"}`,
		"no name":     `{"type":"standard","rank":"Private"}`,
	}
	for name, raw := range cases {
		if _, err := UnmarshalSoldier([]byte(raw)); !errors.Is(err, ErrDeserialization) {
			t.Fatalf("%s: expected deserialization error, got %v", name, err)
		}
	}
	if _, err := MarshalSoldier(nil); !errors.Is(err, ErrSerialization) {
		t.Fatalf("expected serialization error for nil soldier")
	}
}

type medic struct {
	Base
	certification *string
}

func (m *medic) Variant() Variant              { return "test_medic" }
func (m *medic) ExtendedInfo() (string, bool)  { return deref(m.certification) }
func (m *medic) SetExtendedInfo(v string)      { m.certification = &v }
func (m *medic) ClearExtendedInfo()            { m.certification = nil }
func (m *medic) CalculatePay() decimal.Decimal { return decimal.NewFromInt(4200) }

func (m *medic) Clone() Soldier {
	cp := *m
	cp.certification = clonePtr(m.certification)
	return &cp
}

func (m *medic) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "test_medic", "name": m.name, "rank": m.rank})
}

var registerMedic sync.Once

func TestRegisterVariantExtendsRegistry(t *testing.T) {
	registerMedic.Do(func() {
		err := RegisterVariant(VariantSpec{
			Tag:         "test_medic",
			DefaultRank: RankSergeant,
			New: func(base Base, extended *string) Soldier {
				return &medic{Base: base, certification: clonePtr(extended)}
			},
			Decode: func(raw []byte) (Soldier, error) {
				var rec struct {
					Name string `json:"name"`
					Rank Rank   `json:"rank"`
				}
				if err := json.Unmarshal(raw, &rec); err != nil {
					return nil, err
				}
				base, err := NewBase(rec.Name, rec.Rank)
				if err != nil {
					return nil, err
				}
				return &medic{Base: base}, nil
			},
		})
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	})
	s, err := NewSoldier("test_medic", "Doc")
	if err != nil {
		t.Fatalf("new medic: %v", err)
	}
	if s.Rank() != RankSergeant {
		t.Fatalf("expected medic default rank Sergeant, got %s", s.Rank())
	}
	raw, _ := MarshalSoldier(s)
	back, err := UnmarshalSoldier(raw)
	if err != nil {
		t.Fatalf("unmarshal medic: %v", err)
	}
	if !Equal(s, back) {
		t.Fatalf("medic round trip mismatch")
	}
	if err := RegisterVariant(VariantSpec{Tag: VariantStandard, New: func(Base, *string) Soldier { return nil }, Decode: decodeStandard}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate registration to fail, got %v", err)
	}
	if err := RegisterVariant(VariantSpec{Tag: ""}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty tag to fail")
	}
	found := false
	for _, v := range Variants() {
		if v == "test_medic" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected registered variant in listing")
	}
}
