package core

import (
	"context"

	"roster/internal/infra/persistence/file"
	"roster/pkg/domain"

	json "github.com/goccy/go-json"
)

// ExportState captures the extent as a snapshot document.
func (e *Extent) ExportState() (Snapshot, error) {
	snap := Snapshot{
		SchemaVersion: domain.SchemaVersion,
		RosterID:      e.rosterID,
		SavedAt:       e.now(),
		Generations:   make([]uint32, len(e.slots)),
		Soldiers:      make(map[string]json.RawMessage, e.live),
	}
	for i := range e.slots {
		sl := &e.slots[i]
		snap.Generations[i] = sl.generation
		if !sl.occupied() {
			continue
		}
		raw, err := domain.MarshalSoldier(sl.soldier)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Soldiers[domain.KeyFromParts(uint32(i), sl.generation).String()] = raw
	}
	return snap, nil
}

// ImportState replaces the extent's contents with snap. The whole document is
// validated into a fresh arena first; on error the extent is left untouched.
func (e *Extent) ImportState(snap Snapshot) error {
	if snap.SchemaVersion != domain.SchemaVersion {
		return domain.NewError(domain.CodeDeserialization, "unsupported snapshot schema version %d", snap.SchemaVersion)
	}
	slots := make([]slot, len(snap.Generations))
	for i, gen := range snap.Generations {
		slots[i].generation = gen
	}
	for keyText, raw := range snap.Soldiers {
		k, err := domain.ParseKey(keyText)
		if err != nil {
			return domain.WrapError(domain.CodeDeserialization, err, "snapshot record key")
		}
		idx := k.Index()
		if int64(idx) >= int64(len(slots)) {
			return domain.NewError(domain.CodeDeserialization, "record %s outside %d slots", keyText, len(slots))
		}
		sl := &slots[idx]
		if sl.generation != k.Generation() || sl.generation%2 == 0 {
			return domain.NewError(domain.CodeDeserialization, "record %s does not match slot generation %d", keyText, sl.generation)
		}
		if sl.soldier != nil {
			return domain.NewError(domain.CodeDeserialization, "duplicate record for slot %d", idx)
		}
		s, err := domain.UnmarshalSoldier(raw)
		if err != nil {
			return err
		}
		sl.soldier = s
	}
	var free []uint32
	live := 0
	for i := len(slots) - 1; i >= 0; i-- {
		sl := &slots[i]
		switch {
		case sl.generation%2 == 1 && sl.soldier == nil:
			return domain.NewError(domain.CodeDeserialization, "slot %d occupied without a record", i)
		case sl.soldier != nil:
			live++
		case sl.generation != 0:
			free = append(free, uint32(i))
		}
	}

	e.slots = slots
	e.free = free
	e.live = live
	if snap.RosterID != "" {
		e.rosterID = snap.RosterID
	}
	e.ensureRosterID()
	return nil
}

// Save writes the whole extent to path as JSON (zstd-compressed when path ends
// in ".zst"). The file is replaced atomically; a failed save leaves any prior
// file in place.
func (e *Extent) Save(path string) error {
	snap, err := e.ExportState()
	if err != nil {
		return err
	}
	return file.New(path).SaveSnapshot(context.Background(), snap)
}

// Load replaces the extent with the snapshot stored at path. The extent is
// unchanged if reading, decoding or validation fails.
func (e *Extent) Load(path string) error {
	snap, err := file.New(path).LoadSnapshot(context.Background())
	if err != nil {
		return err
	}
	return e.ImportState(snap)
}
