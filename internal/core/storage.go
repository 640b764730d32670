package core

import (
	"context"
	"fmt"

	"roster/internal/blob"
	"roster/internal/infra/persistence/archive"
	"roster/internal/infra/persistence/file"
	"roster/internal/infra/persistence/postgres"
	"roster/internal/infra/persistence/sqlite"
)

// SnapshotStore persists whole-roster snapshots. A store that holds nothing
// yet fails LoadSnapshot with an IO error wrapping domain.ErrSnapshotNotFound.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	Close() error
}

var (
	_ SnapshotStore = (*file.Store)(nil)
	_ SnapshotStore = (*sqlite.Store)(nil)
	_ SnapshotStore = (*postgres.Store)(nil)
	_ SnapshotStore = (*archive.Store)(nil)
)

// StorageDriver identifies a concrete snapshot store implementation.
type StorageDriver string

const (
	StorageFile     StorageDriver = "file"     // single JSON document (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // append-only blob archive
)

// StorageConfig selects and configures a snapshot store. Populate it with
// config.ParseEnv using the "ROSTER_" prefix:
//
//	ROSTER_STORAGE_DRIVER: file|sqlite|postgres|blob (default file)
//	ROSTER_FILE_PATH: snapshot path when driver=file; ".zst" compresses
//	ROSTER_SQLITE_PATH: database file when driver=sqlite
//	ROSTER_POSTGRES_DSN: DSN when driver=postgres
//	ROSTER_BLOB_PREFIX: key prefix when driver=blob
//	ROSTER_BLOB_DRIVER, ROSTER_BLOB_FS_ROOT, ROSTER_BLOB_S3_*: blob backend
type StorageConfig struct {
	Driver      StorageDriver `env:"STORAGE_DRIVER" envDefault:"file"`
	FilePath    string        `env:"FILE_PATH" envDefault:"roster.json"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"roster.db"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
	BlobPrefix  string        `env:"BLOB_PREFIX" envDefault:"roster/snapshots"`
	Blob        blob.Config   `envPrefix:"BLOB_"`
}

// OpenSnapshotStore constructs the store named by cfg.Driver.
func OpenSnapshotStore(ctx context.Context, cfg StorageConfig) (SnapshotStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageFile:
		return file.New(cfg.FilePath), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return archive.New(blobs, cfg.BlobPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
