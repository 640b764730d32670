// Package domain defines the roster's value types: ranks, soldier variants,
// extent keys, the persisted snapshot document, and the error taxonomy.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Variant is the type tag carried by every persisted soldier record.
type Variant string

// Built-in soldier variants.
const (
	// VariantStandard identifies a line soldier paid by rank.
	VariantStandard Variant = "standard"
	// VariantEngineer identifies an engineer on a flat rate.
	VariantEngineer Variant = "engineer"
)

// Per-variant default ranks used when none is supplied at creation.
const (
	StandardDefaultRank = RankPrivate
	EngineerDefaultRank = RankCorporal
)

// Soldier is the capability set every variant implements.
type Soldier interface {
	Variant() Variant
	Name() string
	SetName(name string) error
	Rank() Rank
	SetRank(rank Rank) error
	// ExtendedInfo returns the variant-specific optional attribute
	// (home address, specialization) and whether it is set.
	ExtendedInfo() (string, bool)
	SetExtendedInfo(value string)
	ClearExtendedInfo()
	CalculatePay() decimal.Decimal
	Clone() Soldier
}

// Base holds the fields shared by all variants. Custom variants embed it.
type Base struct {
	name string
	rank Rank
}

// NewBase validates and constructs the shared fields.
func NewBase(name string, rank Rank) (Base, error) {
	if err := validateName(name); err != nil {
		return Base{}, err
	}
	if !rank.Valid() {
		return Base{}, NewError(CodeValidation, "rank %d out of range", uint8(rank))
	}
	return Base{name: name, rank: rank}, nil
}

// Name returns the soldier's name.
func (b *Base) Name() string { return b.name }

// SetName renames the soldier. Empty names are rejected and leave the name unchanged.
func (b *Base) SetName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	b.name = name
	return nil
}

// Rank returns the soldier's rank.
func (b *Base) Rank() Rank { return b.rank }

// SetRank assigns a rank.
func (b *Base) SetRank(rank Rank) error {
	if !rank.Valid() {
		return NewError(CodeValidation, "rank %d out of range", uint8(rank))
	}
	b.rank = rank
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewError(CodeValidation, "soldier name must not be empty")
	}
	return nil
}

// Standard is a line soldier whose pay steps with rank.
type Standard struct {
	Base
	homeAddress *string
}

// Variant implements Soldier.
func (s *Standard) Variant() Variant { return VariantStandard }

// ExtendedInfo returns the home address.
func (s *Standard) ExtendedInfo() (string, bool) { return deref(s.homeAddress) }

// SetExtendedInfo sets the home address.
func (s *Standard) SetExtendedInfo(value string) { s.homeAddress = &value }

// ClearExtendedInfo removes the home address.
func (s *Standard) ClearExtendedInfo() { s.homeAddress = nil }

// CalculatePay returns 1000 per grade: Private 1000 through General 8000.
func (s *Standard) CalculatePay() decimal.Decimal {
	return decimal.NewFromInt(1000 * (int64(s.rank) + 1))
}

// Clone implements Soldier.
func (s *Standard) Clone() Soldier {
	cp := *s
	cp.homeAddress = clonePtr(s.homeAddress)
	return &cp
}

func (s *Standard) String() string {
	return fmt.Sprintf("Standard{%s %s}", s.name, s.rank)
}

type standardRecord struct {
	Type        Variant `json:"type"`
	Name        string  `json:"name"`
	Rank        Rank    `json:"rank"`
	HomeAddress *string `json:"home_address,omitempty"`
}

// MarshalJSON emits the tagged record.
func (s *Standard) MarshalJSON() ([]byte, error) {
	return json.Marshal(standardRecord{Type: VariantStandard, Name: s.name, Rank: s.rank, HomeAddress: s.homeAddress})
}

// Engineer is paid a flat rate regardless of rank.
type Engineer struct {
	Base
	specialization *string
}

var engineerPay = decimal.NewFromInt(3500)

// Variant implements Soldier.
func (e *Engineer) Variant() Variant { return VariantEngineer }

// ExtendedInfo returns the specialization.
func (e *Engineer) ExtendedInfo() (string, bool) { return deref(e.specialization) }

// SetExtendedInfo sets the specialization.
func (e *Engineer) SetExtendedInfo(value string) { e.specialization = &value }

// ClearExtendedInfo removes the specialization.
func (e *Engineer) ClearExtendedInfo() { e.specialization = nil }

// CalculatePay returns the flat engineer rate.
func (e *Engineer) CalculatePay() decimal.Decimal { return engineerPay }

// Clone implements Soldier.
func (e *Engineer) Clone() Soldier {
	cp := *e
	cp.specialization = clonePtr(e.specialization)
	return &cp
}

func (e *Engineer) String() string {
	return fmt.Sprintf("Engineer{%s %s}", e.name, e.rank)
}

type engineerRecord struct {
	Type           Variant `json:"type"`
	Name           string  `json:"name"`
	Rank           Rank    `json:"rank"`
	Specialization *string `json:"specialization,omitempty"`
}

// MarshalJSON emits the tagged record.
func (e *Engineer) MarshalJSON() ([]byte, error) {
	return json.Marshal(engineerRecord{Type: VariantEngineer, Name: e.name, Rank: e.rank, Specialization: e.specialization})
}

// VariantSpec registers a soldier variant. New receives validated shared
// fields; Decode receives the full tagged record and must reject invalid content.
type VariantSpec struct {
	Tag         Variant
	DefaultRank Rank
	New         func(base Base, extended *string) Soldier
	Decode      func(raw []byte) (Soldier, error)
}

var (
	variantsMu sync.RWMutex
	variants   = map[Variant]VariantSpec{}
)

func init() {
	mustRegister(VariantSpec{
		Tag:         VariantStandard,
		DefaultRank: StandardDefaultRank,
		New: func(base Base, extended *string) Soldier {
			return &Standard{Base: base, homeAddress: clonePtr(extended)}
		},
		Decode: decodeStandard,
	})
	mustRegister(VariantSpec{
		Tag:         VariantEngineer,
		DefaultRank: EngineerDefaultRank,
		New: func(base Base, extended *string) Soldier {
			return &Engineer{Base: base, specialization: clonePtr(extended)}
		},
		Decode: decodeEngineer,
	})
}

func mustRegister(spec VariantSpec) {
	if err := RegisterVariant(spec); err != nil {
		panic(fmt.Errorf("domain: register %s: %w", spec.Tag, err))
	}
}

// RegisterVariant adds a variant to the registry. Tags must be unique.
func RegisterVariant(spec VariantSpec) error {
	if strings.TrimSpace(string(spec.Tag)) == "" {
		return NewError(CodeValidation, "variant tag must not be empty")
	}
	if spec.New == nil || spec.Decode == nil {
		return NewError(CodeValidation, "variant %q requires New and Decode", spec.Tag)
	}
	if !spec.DefaultRank.Valid() {
		return NewError(CodeValidation, "variant %q default rank out of range", spec.Tag)
	}
	variantsMu.Lock()
	defer variantsMu.Unlock()
	if _, exists := variants[spec.Tag]; exists {
		return NewError(CodeValidation, "variant %q already registered", spec.Tag)
	}
	variants[spec.Tag] = spec
	return nil
}

// LookupVariant returns the registered spec for tag.
func LookupVariant(tag Variant) (VariantSpec, bool) {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	spec, ok := variants[tag]
	return spec, ok
}

// Variants lists registered tags in lexical order.
func Variants() []Variant {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	out := make([]Variant, 0, len(variants))
	for tag := range variants {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultRank returns the rank a variant is created with when none is given.
func DefaultRank(tag Variant) (Rank, bool) {
	spec, ok := LookupVariant(tag)
	if !ok {
		return 0, false
	}
	return spec.DefaultRank, true
}

// Option customises soldier construction.
type Option func(*createOptions)

type createOptions struct {
	rank     *Rank
	extended *string
}

// WithRank overrides the variant's default rank.
func WithRank(rank Rank) Option {
	return func(o *createOptions) { o.rank = &rank }
}

// WithExtendedInfo sets the variant-specific attribute at creation.
func WithExtendedInfo(value string) Option {
	return func(o *createOptions) { o.extended = &value }
}

// NewSoldier constructs a soldier of the given variant.
func NewSoldier(tag Variant, name string, opts ...Option) (Soldier, error) {
	spec, ok := LookupVariant(tag)
	if !ok {
		return nil, NewError(CodeValidation, "unknown soldier variant %q", tag)
	}
	var o createOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	rank := spec.DefaultRank
	if o.rank != nil {
		rank = *o.rank
	}
	base, err := NewBase(name, rank)
	if err != nil {
		return nil, err
	}
	return spec.New(base, o.extended), nil
}

// NewStandard constructs a standard soldier.
func NewStandard(name string, opts ...Option) (*Standard, error) {
	s, err := NewSoldier(VariantStandard, name, opts...)
	if err != nil {
		return nil, err
	}
	return s.(*Standard), nil
}

// NewEngineer constructs an engineer.
func NewEngineer(name string, opts ...Option) (*Engineer, error) {
	s, err := NewSoldier(VariantEngineer, name, opts...)
	if err != nil {
		return nil, err
	}
	return s.(*Engineer), nil
}

// MarshalSoldier encodes a soldier as its tagged record.
func MarshalSoldier(s Soldier) ([]byte, error) {
	if s == nil {
		return nil, NewError(CodeSerialization, "nil soldier")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, WrapError(CodeSerialization, err, "encode %s soldier", s.Variant())
	}
	return raw, nil
}

// UnmarshalSoldier decodes a tagged record into its registered variant.
// A missing or unknown tag is an error; records are never coerced.
func UnmarshalSoldier(raw []byte) (Soldier, error) {
	var head struct {
		Type Variant `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, WrapError(CodeDeserialization, err, "decode soldier record")
	}
	if head.Type == "" {
		return nil, NewError(CodeDeserialization, "soldier record missing type tag")
	}
	spec, ok := LookupVariant(head.Type)
	if !ok {
		return nil, NewError(CodeDeserialization, "unknown soldier type %q", head.Type)
	}
	s, err := spec.Decode(raw)
	if err != nil {
		return nil, WrapError(CodeDeserialization, err, "decode %s soldier", head.Type)
	}
	return s, nil
}

// requireFields rejects records that omit any of the named fields, so a
// missing rank is not read as the zero rank.
func requireFields(raw []byte, names ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := fields[name]; !ok {
			return NewError(CodeDeserialization, "soldier record missing %q", name)
		}
	}
	return nil
}

func decodeStandard(raw []byte) (Soldier, error) {
	if err := requireFields(raw, "name", "rank"); err != nil {
		return nil, err
	}
	var rec standardRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	base, err := NewBase(rec.Name, rec.Rank)
	if err != nil {
		return nil, err
	}
	return &Standard{Base: base, homeAddress: rec.HomeAddress}, nil
}

func decodeEngineer(raw []byte) (Soldier, error) {
	if err := requireFields(raw, "name", "rank"); err != nil {
		return nil, err
	}
	var rec engineerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	base, err := NewBase(rec.Name, rec.Rank)
	if err != nil {
		return nil, err
	}
	return &Engineer{Base: base, specialization: rec.Specialization}, nil
}

// Equal reports whether two soldiers agree on variant, name, rank and extended info.
func Equal(a, b Soldier) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ax, aok := a.ExtendedInfo()
	bx, bok := b.ExtendedInfo()
	return a.Variant() == b.Variant() &&
		a.Name() == b.Name() &&
		a.Rank() == b.Rank() &&
		aok == bok && ax == bx
}

func deref(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
