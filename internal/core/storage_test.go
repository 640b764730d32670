package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"roster/internal/blob"
	"roster/internal/infra/persistence/archive"
	"roster/internal/infra/persistence/file"
	"roster/internal/infra/persistence/sqlite"
	"roster/pkg/domain"
)

func roundTrip(t *testing.T, store SnapshotStore) {
	t.Helper()
	ctx := context.Background()
	svc := NewService(WithSnapshotStore(store))
	defer func() { _ = svc.Close() }()

	if err := svc.Restore(ctx); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected empty store to report not found, got %v", err)
	}
	k := mustEnlist(t, svc, domain.VariantStandard, "John", domain.WithExtendedInfo("12 Elm St"))
	if err := svc.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	restored := NewService(WithSnapshotStore(store))
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	sol, ok := restored.Soldier(ctx, k)
	if !ok {
		t.Fatalf("key %s did not survive the round trip", k)
	}
	if addr, _ := sol.ExtendedInfo(); sol.Name() != "John" || addr != "12 Elm St" {
		t.Fatalf("unexpected restored soldier %v", sol)
	}
}

func TestOpenSnapshotStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json.zst")
	store, err := OpenSnapshotStore(context.Background(), StorageConfig{FilePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fs, ok := store.(*file.Store)
	if !ok || fs.Path() != path {
		t.Fatalf("expected file store at %s, got %T", path, store)
	}
	roundTrip(t, store)
}

func TestOpenSnapshotStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.db")
	store, err := OpenSnapshotStore(context.Background(), StorageConfig{Driver: StorageSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	roundTrip(t, store)
}

func TestOpenSnapshotStoreBlob(t *testing.T) {
	store, err := OpenSnapshotStore(context.Background(), StorageConfig{
		Driver:     StorageBlob,
		BlobPrefix: "units/alpha",
		Blob:       blob.Config{Driver: string(blob.DriverMemory)},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	arch, ok := store.(*archive.Store)
	if !ok || arch.Prefix() != "units/alpha" {
		t.Fatalf("expected archive store, got %T", store)
	}
	roundTrip(t, store)
}

func TestOpenSnapshotStoreErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenSnapshotStore(ctx, StorageConfig{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	_, err := OpenSnapshotStore(ctx, StorageConfig{Driver: StorageBlob, Blob: blob.Config{Driver: "floppy"}})
	if err == nil {
		t.Fatalf("expected unknown blob driver error")
	}
	if _, err := OpenSnapshotStore(ctx, StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://%zz/roster"}); !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected IO error for malformed postgres dsn, got %v", err)
	}
}
