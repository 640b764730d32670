package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"roster/internal/blob"
	"roster/pkg/domain"

	json "github.com/goccy/go-json"
)

func snapshotNamed(t *testing.T, name string) domain.Snapshot {
	t.Helper()
	s, err := domain.NewStandard(name)
	if err != nil {
		t.Fatalf("new standard: %v", err)
	}
	raw, err := domain.MarshalSoldier(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return domain.Snapshot{
		SchemaVersion: domain.SchemaVersion,
		RosterID:      "archive-test",
		SavedAt:       time.Now().UTC(),
		Generations:   []uint32{1},
		Soldiers:      map[string]json.RawMessage{"0v1": raw},
	}
}

func firstName(t *testing.T, snap domain.Snapshot) string {
	t.Helper()
	s, err := domain.UnmarshalSoldier(snap.Soldiers["0v1"])
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return s.Name()
}

func TestArchiveLoadsNewest(t *testing.T) {
	ctx := context.Background()
	for name, backing := range map[string]blob.Store{
		"memory": blob.NewMemory(),
		"s3":     blob.NewMockS3ForTests(),
	} {
		store := New(backing, "/units/alpha/")
		tick := time.Unix(1_700_000_000, 0)
		store.now = func() time.Time { tick = tick.Add(time.Second); return tick }

		if _, err := store.LoadSnapshot(ctx); !errors.Is(err, domain.ErrIO) || !errors.Is(err, domain.ErrSnapshotNotFound) {
			t.Fatalf("%s: expected not found on empty archive, got %v", name, err)
		}
		for _, soldier := range []string{"First", "Second", "Third"} {
			if err := store.SaveSnapshot(ctx, snapshotNamed(t, soldier)); err != nil {
				t.Fatalf("%s: save %s: %v", name, soldier, err)
			}
		}
		got, err := store.LoadSnapshot(ctx)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if firstName(t, got) != "Third" {
			t.Fatalf("%s: expected newest snapshot, got %s", name, firstName(t, got))
		}
		history, _ := store.History(ctx)
		if len(history) != 3 || history[0].Key[:len("units/alpha/")] != "units/alpha/" {
			t.Fatalf("%s: unexpected history %+v", name, history)
		}
	}
}

func TestArchiveSameInstantDoesNotCollide(t *testing.T) {
	ctx := context.Background()
	store := New(blob.NewMemory(), "")
	fixed := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return fixed }
	for _, soldier := range []string{"A", "B"} {
		if err := store.SaveSnapshot(ctx, snapshotNamed(t, soldier)); err != nil {
			t.Fatalf("save %s: %v", soldier, err)
		}
	}
	got, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if firstName(t, got) != "B" {
		t.Fatalf("expected later save to win, got %s", firstName(t, got))
	}
	if store.Prefix() != defaultPrefix {
		t.Fatalf("unexpected prefix %s", store.Prefix())
	}
}

func TestArchivePrune(t *testing.T) {
	ctx := context.Background()
	store := New(blob.NewMemory(), "p")
	tick := time.Unix(0, 0)
	store.now = func() time.Time { tick = tick.Add(time.Millisecond); return tick }
	for _, soldier := range []string{"A", "B", "C", "D"} {
		if err := store.SaveSnapshot(ctx, snapshotNamed(t, soldier)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	removed, err := store.Prune(ctx, 2)
	if err != nil || removed != 2 {
		t.Fatalf("prune: %d %v", removed, err)
	}
	history, _ := store.History(ctx)
	if len(history) != 2 {
		t.Fatalf("expected 2 snapshots after prune, got %d", len(history))
	}
	got, _ := store.LoadSnapshot(ctx)
	if firstName(t, got) != "D" {
		t.Fatalf("prune removed the newest snapshot")
	}
}

func TestArchiveRejectsCorruptBlob(t *testing.T) {
	ctx := context.Background()
	backing := blob.NewMemory()
	store := New(backing, "c")
	if _, err := backing.Put(ctx, store.keyFor(1), bytes.NewReader([]byte(`{"schema_version":1}`)), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.LoadSnapshot(ctx); !errors.Is(err, domain.ErrDeserialization) {
		t.Fatalf("expected deserialization error, got %v", err)
	}
}
