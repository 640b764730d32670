// Package postgres persists roster snapshots as a JSONB row in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"roster/internal/infra/persistence/codec"
	"roster/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/roster?sslmode=disable"
	// DefaultBucket names the state row a roster is stored under.
	DefaultBucket = "roster"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps the snapshot document in the payload column of the state table.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	bucket string
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN),
// pings the server and ensures the state table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.CodeIO, err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.WrapError(domain.CodeIO, err, "ping postgres")
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: DefaultBucket}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return domain.WrapError(domain.CodeIO, err, "ensure state table")
	}
	return nil
}

// SaveSnapshot upserts the encoded snapshot within a transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
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
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, s.bucket, data); err != nil {
		return domain.WrapError(domain.CodeIO, err, "upsert %s", s.bucket)
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.CodeIO, err, "commit")
	}
	committed = true
	return nil
}

// LoadSnapshot reads and validates the stored snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, s.bucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, domain.ErrSnapshotNotFound, "bucket %s", s.bucket)
	}
	if err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, fmt.Errorf("select state: %w", err), "load %s", s.bucket)
	}
	return codec.Decode(payload)
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
