// Package sqlite persists roster snapshots in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"roster/internal/infra/persistence/codec"
	"roster/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultBucket names the state row a roster is stored under.
const DefaultBucket = "roster"

// Store keeps the whole snapshot document in one row of the state table.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	bucket string
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	return NewStoreWithBucket(path, DefaultBucket)
}

// NewStoreWithBucket opens the database at path and scopes reads and writes
// to bucket, so several rosters can share one file.
func NewStoreWithBucket(path, bucket string) (*Store, error) {
	if path == "" {
		path = "roster.db"
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, domain.WrapError(domain.CodeIO, err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.WrapError(domain.CodeIO, err, "open sqlite")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, domain.WrapError(domain.CodeIO, err, "create state table")
	}
	return &Store{db: db, path: path, bucket: bucket}, nil
}

// SaveSnapshot upserts the encoded snapshot in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap domain.Snapshot) (retErr error) {
	data, err := codec.Encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.CodeIO, err, "begin tx")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, s.bucket, data); err != nil {
		return domain.WrapError(domain.CodeIO, err, "upsert %s", s.bucket)
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.CodeIO, err, "commit")
	}
	return nil
}

// LoadSnapshot reads and validates the stored snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, s.bucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, domain.ErrSnapshotNotFound, "bucket %s", s.bucket)
	}
	if err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, fmt.Errorf("select state: %w", err), "load %s", s.bucket)
	}
	return codec.Decode(payload)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
