package core_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"roster/internal/core"
	"roster/pkg/domain"

	json "github.com/goccy/go-json"
)

func populated(t *testing.T) (*core.Extent, []core.Key) {
	t.Helper()
	ext := core.NewExtent()
	john := mustCreate(t, ext, domain.VariantStandard, "John", domain.WithExtendedInfo("1 Elm St"))
	gone := mustCreate(t, ext, domain.VariantStandard, "Gone")
	joe := mustCreate(t, ext, domain.VariantEngineer, "Joe", domain.WithRank(domain.RankMajor), domain.WithExtendedInfo("bridges"))
	bob := mustCreate(t, ext, domain.VariantStandard, "Bob", domain.WithRank(domain.RankColonel))
	ext.Remove(gone)
	return ext, []core.Key{john, gone, joe, bob}
}

func assertSameRoster(t *testing.T, want, got *core.Extent) {
	t.Helper()
	if want.Len() != got.Len() {
		t.Fatalf("len mismatch: want %d got %d", want.Len(), got.Len())
	}
	want.Each(func(k core.Key, s core.Soldier) bool {
		other, ok := got.Get(k)
		if !ok {
			t.Fatalf("key %s missing after round trip", k)
		}
		if !domain.Equal(s, other) {
			t.Fatalf("key %s: want %v got %v", k, s, other)
		}
		return true
	})
}

func TestExtentSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"roster.json", "roster.json.zst"} {
		ext, keys := populated(t)
		path := filepath.Join(t.TempDir(), name)
		if err := ext.Save(path); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		restored := core.NewExtent()
		if err := restored.Load(path); err != nil {
			t.Fatalf("%s load: %v", name, err)
		}
		assertSameRoster(t, ext, restored)
		if restored.RosterID() != ext.RosterID() {
			t.Fatalf("roster id not carried over")
		}
		if _, ok := restored.Get(keys[1]); ok {
			t.Fatalf("removed key resolved after load")
		}
		reused := mustCreate(t, restored, domain.VariantStandard, "Newcomer")
		if reused.Index() != keys[1].Index() || reused == keys[1] {
			t.Fatalf("expected vacant slot reuse with fresh generation, got %s", reused)
		}
	}
}

func TestExtentSnapshotShape(t *testing.T) {
	ext, keys := populated(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ext.SetNowFunc(func() time.Time { return fixed })
	snap, err := ext.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !snap.SavedAt.Equal(fixed) || snap.SchemaVersion != domain.SchemaVersion {
		t.Fatalf("unexpected header %+v", snap)
	}
	if len(snap.Generations) != 4 || snap.Generations[1] != 2 {
		t.Fatalf("unexpected generations %v", snap.Generations)
	}
	var rec map[string]any
	if err := json.Unmarshal(snap.Soldiers[keys[2].String()], &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["type"] != "engineer" || rec["rank"] != "Major" || rec["specialization"] != "bridges" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestExtentLoadFailureLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown tag":  `{"schema_version":1,"generations":[1],"soldiers":{"0v1":{"type":"cavalry","name":"X","rank":"Private"}}}`,
		"bad rank":     `{"schema_version":1,"generations":[1],"soldiers":{"0v1":{"type":"standard","name":"X","rank":"Admiral"}}}`,
		"malformed":    `{"schema_version":1,"generations":[1],"soldiers":`,
		"even gen":     `{"schema_version":1,"generations":[2],"soldiers":{"0v2":{"type":"standard","name":"X","rank":"Private"}}}`,
		"missing rec":  `{"schema_version":1,"generations":[1,3],"soldiers":{"0v1":{"type":"standard","name":"X","rank":"Private"}}}`,
		"out of range": `{"schema_version":1,"generations":[1],"soldiers":{"5v1":{"type":"standard","name":"X","rank":"Private"}}}`,
		"bad version":  `{"schema_version":2,"generations":[],"soldiers":{}}`,
	}
	for name, doc := range cases {
		ext, keys := populated(t)
		path := filepath.Join(dir, "case.json")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		before := ext.RosterID()
		err := ext.Load(path)
		if !errors.Is(err, domain.ErrDeserialization) {
			t.Fatalf("%s: expected deserialization error, got %v", name, err)
		}
		if ext.Len() != 3 || ext.RosterID() != before {
			t.Fatalf("%s: state changed after failed load", name)
		}
		if s, ok := ext.Get(keys[0]); !ok || s.Name() != "John" {
			t.Fatalf("%s: existing soldier lost", name)
		}
	}
}

func TestZeroExtentSaveLoad(t *testing.T) {
	var ext core.Extent
	if ext.RosterID() != "" {
		t.Fatalf("unused zero extent should have no roster id, got %q", ext.RosterID())
	}
	k, err := ext.CreateStandard("John")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ext.RosterID() == "" {
		t.Fatalf("expected roster id after first insert")
	}

	path := filepath.Join(t.TempDir(), "zero.json")
	before := time.Now().UTC().Add(-time.Second)
	if err := ext.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err := ext.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if snap.SavedAt.Before(before) || snap.RosterID != ext.RosterID() {
		t.Fatalf("unexpected snapshot stamp %s id %q", snap.SavedAt, snap.RosterID)
	}

	loaded := core.NewExtent()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RosterID() != ext.RosterID() {
		t.Fatalf("roster id %q not carried over, got %q", ext.RosterID(), loaded.RosterID())
	}
	if s, ok := loaded.Get(k); !ok || s.Name() != "John" {
		t.Fatalf("key %s did not resolve after load", k)
	}

	var empty core.Extent
	if err := empty.Save(filepath.Join(t.TempDir(), "empty.json")); err != nil {
		t.Fatalf("save empty zero extent: %v", err)
	}
}

func TestExtentLoadMissingFile(t *testing.T) {
	ext, _ := populated(t)
	err := ext.Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, domain.ErrIO) || !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected io error, got %v", err)
	}
	if ext.Len() != 3 {
		t.Fatalf("state changed after missing-file load")
	}
}

func TestExtentImportRejectsDuplicateSlot(t *testing.T) {
	raw := json.RawMessage(`{"type":"standard","name":"X","rank":"Private"}`)
	ext := core.NewExtent()
	err := ext.ImportState(core.Snapshot{
		SchemaVersion: domain.SchemaVersion,
		Generations:   []uint32{1},
		Soldiers:      map[string]json.RawMessage{"0v1": raw, "00v1": raw},
	})
	if !errors.Is(err, domain.ErrDeserialization) {
		t.Fatalf("expected duplicate slot error, got %v", err)
	}
	if ext.Len() != 0 {
		t.Fatalf("failed import changed state")
	}
}
