// Package file persists roster snapshots as a single JSON document on the
// local filesystem.
package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"roster/internal/infra/persistence/codec"
	"roster/pkg/domain"
)

// Store reads and writes one snapshot file. Paths ending in ".zst" are
// zstd-compressed. Writes go to a temp file in the same directory and are
// renamed over the target, so a failed save never truncates the prior file.
type Store struct {
	path string
}

// New returns a store for path.
func New(path string) *Store {
	if path == "" {
		path = "roster.json"
	}
	return &Store{path: path}
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

func (s *Store) compressed() bool { return strings.HasSuffix(s.path, ".zst") }

// SaveSnapshot atomically replaces the snapshot file.
func (s *Store) SaveSnapshot(_ context.Context, snap domain.Snapshot) error {
	data, err := codec.Encode(snap)
	if err != nil {
		return err
	}
	if s.compressed() {
		if data, err = codec.Compress(data); err != nil {
			return err
		}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.WrapError(domain.CodeIO, err, "create snapshot dir")
	}
	tmp, err := os.CreateTemp(dir, ".roster-*.tmp")
	if err != nil {
		return domain.WrapError(domain.CodeIO, err, "create temp snapshot")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return domain.WrapError(domain.CodeIO, err, "write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return domain.WrapError(domain.CodeIO, err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return domain.WrapError(domain.CodeIO, err, "close snapshot")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return domain.WrapError(domain.CodeIO, err, "replace snapshot %s", s.path)
	}
	return nil
}

// LoadSnapshot reads, validates and decodes the snapshot file.
func (s *Store) LoadSnapshot(_ context.Context) (domain.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, errors.Join(domain.ErrSnapshotNotFound, err), "read snapshot %s", s.path)
	}
	if err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, err, "read snapshot %s", s.path)
	}
	if s.compressed() {
		if data, err = codec.Decompress(data); err != nil {
			return domain.Snapshot{}, err
		}
	}
	return codec.Decode(data)
}

// Close implements the snapshot store contract; there is nothing to release.
func (s *Store) Close() error { return nil }
