// Package archive keeps every saved roster snapshot as an immutable blob and
// loads the newest one.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"roster/internal/blob"
	"roster/internal/infra/persistence/codec"
	"roster/pkg/domain"
)

const (
	defaultPrefix = "roster/snapshots"
	suffix        = ".json"
	maxAttempts   = 8
)

// Store writes snapshots to <prefix>/<unix-nanos>.json. Keys are zero padded
// so lexical order is save order.
type Store struct {
	blobs  blob.Store
	prefix string
	now    func() time.Time
}

// New returns an archive over blobs. An empty prefix uses "roster/snapshots".
func New(blobs blob.Store, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{blobs: blobs, prefix: prefix, now: time.Now}
}

// Prefix returns the key prefix snapshots are written under.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) keyFor(nanos int64) string {
	return fmt.Sprintf("%s/%020d%s", s.prefix, nanos, suffix)
}

// SaveSnapshot appends a new snapshot blob. Earlier snapshots are never modified.
func (s *Store) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := codec.Encode(snap)
	if err != nil {
		return err
	}
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"roster_id":      snap.RosterID,
			"schema_version": strconv.Itoa(snap.SchemaVersion),
		},
	}
	nanos := s.now().UnixNano()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err = s.blobs.Put(ctx, s.keyFor(nanos+int64(attempt)), bytes.NewReader(data), opts)
		if !errors.Is(err, blob.ErrExists) {
			break
		}
	}
	if err != nil {
		return domain.WrapError(domain.CodeIO, err, "archive snapshot")
	}
	return nil
}

// History lists archived snapshots oldest first.
func (s *Store) History(ctx context.Context) ([]blob.Info, error) {
	infos, err := s.blobs.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, domain.WrapError(domain.CodeIO, err, "list snapshots")
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, suffix) {
			out = append(out, info)
		}
	}
	return out, nil
}

// LoadSnapshot decodes the newest archived snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	history, err := s.History(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(history) == 0 {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, domain.ErrSnapshotNotFound, "no snapshots under %s", s.prefix)
	}
	return s.load(ctx, history[len(history)-1].Key)
}

func (s *Store) load(ctx context.Context, key string) (domain.Snapshot, error) {
	_, rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, err, "open snapshot %s", key)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.CodeIO, err, "read snapshot %s", key)
	}
	return codec.Decode(data)
}

// Prune deletes all but the newest keep snapshots and reports how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	history, err := s.History(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := 0; i < len(history)-keep; i++ {
		ok, err := s.blobs.Delete(ctx, history[i].Key)
		if err != nil {
			return removed, domain.WrapError(domain.CodeIO, err, "prune snapshot %s", history[i].Key)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Close implements the snapshot store contract. The blob store is owned by the caller.
func (s *Store) Close() error { return nil }
