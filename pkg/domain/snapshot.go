package domain

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
)

// SchemaVersion is the only snapshot layout this build reads and writes.
const SchemaVersion = 1

// Snapshot is the persisted form of a whole extent.
//
// Generations holds the current generation of every slot, occupied (odd) or
// vacant (even), so keys issued before a save stay stale after a load.
// Soldiers maps Key.String() of each live slot to its tagged record.
type Snapshot struct {
	SchemaVersion int                        `json:"schema_version"`
	RosterID      string                     `json:"roster_id"`
	SavedAt       time.Time                  `json:"saved_at"`
	Generations   []uint32                   `json:"generations"`
	Soldiers      map[string]json.RawMessage `json:"soldiers"`
}

// Len returns the number of live records in the snapshot.
func (s Snapshot) Len() int { return len(s.Soldiers) }

// MarshalSnapshot encodes a snapshot document.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	if s.Soldiers == nil {
		s.Soldiers = map[string]json.RawMessage{}
	}
	if s.Generations == nil {
		s.Generations = []uint32{}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, WrapError(CodeSerialization, err, "encode snapshot")
	}
	return b, nil
}

// UnmarshalSnapshot decodes a snapshot document and checks its version.
// Records are left raw; the extent validates them on import.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, WrapError(CodeDeserialization, err, "decode snapshot")
	}
	if s.SchemaVersion != SchemaVersion {
		return Snapshot{}, NewError(CodeDeserialization, "unsupported snapshot schema version %d", s.SchemaVersion)
	}
	return s, nil
}

// ErrSnapshotNotFound reports that a store holds no snapshot yet. Stores wrap
// it in an IO error.
var ErrSnapshotNotFound = errors.New("snapshot not found")
