package core

import (
	"math"
	"regexp"
	"time"

	"roster/pkg/domain"

	"github.com/google/uuid"
)

type (
	// Key aliases domain.Key.
	Key = domain.Key
	// Soldier aliases domain.Soldier.
	Soldier = domain.Soldier
	// Rank aliases domain.Rank.
	Rank = domain.Rank
	// Variant aliases domain.Variant.
	Variant = domain.Variant
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
)

// slot generations are odd while occupied and even while vacant. A slot whose
// generation wraps to zero is retired and never reused.
type slot struct {
	generation uint32
	soldier    Soldier
}

func (s *slot) occupied() bool { return s.generation%2 == 1 && s.soldier != nil }

// Extent owns every soldier and hands out generational keys. It performs no
// locking; callers needing concurrent access wrap it (see Service).
//
// The zero value is an empty extent ready to use. It is assigned a roster id
// on its first insert and stamps snapshots with the UTC wall clock.
type Extent struct {
	slots    []slot
	free     []uint32
	live     int
	rosterID string
	nowFn    func() time.Time
}

// NewExtent returns an empty extent with a fresh roster id.
func NewExtent() *Extent {
	return &Extent{
		rosterID: uuid.NewString(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// RosterID identifies this roster across saves. It is empty only for a zero
// extent that has never held a soldier.
func (e *Extent) RosterID() string { return e.rosterID }

func (e *Extent) ensureRosterID() {
	if e.rosterID == "" {
		e.rosterID = uuid.NewString()
	}
}

func (e *Extent) now() time.Time {
	if e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn()
}

// SetNowFunc overrides the clock used to stamp snapshots.
func (e *Extent) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		e.nowFn = fn
	}
}

// Create constructs a soldier of the given variant and stores it.
func (e *Extent) Create(variant Variant, name string, opts ...domain.Option) (Key, error) {
	s, err := domain.NewSoldier(variant, name, opts...)
	if err != nil {
		return Key{}, err
	}
	return e.insert(s), nil
}

// CreateStandard stores a new standard soldier.
func (e *Extent) CreateStandard(name string, opts ...domain.Option) (Key, error) {
	return e.Create(domain.VariantStandard, name, opts...)
}

// CreateEngineer stores a new engineer.
func (e *Extent) CreateEngineer(name string, opts ...domain.Option) (Key, error) {
	return e.Create(domain.VariantEngineer, name, opts...)
}

// Insert stores a copy of an already constructed soldier.
func (e *Extent) Insert(s Soldier) (Key, error) {
	if s == nil {
		return Key{}, domain.NewError(domain.CodeValidation, "cannot insert nil soldier")
	}
	return e.insert(s.Clone()), nil
}

func (e *Extent) insert(s Soldier) Key {
	e.ensureRosterID()
	var idx uint32
	if n := len(e.free); n > 0 {
		idx = e.free[n-1]
		e.free = e.free[:n-1]
	} else {
		idx = uint32(len(e.slots))
		e.slots = append(e.slots, slot{})
	}
	sl := &e.slots[idx]
	sl.generation++
	sl.soldier = s
	e.live++
	return domain.KeyFromParts(idx, sl.generation)
}

func (e *Extent) lookup(k Key) (*slot, bool) {
	idx := k.Index()
	if int64(idx) >= int64(len(e.slots)) {
		return nil, false
	}
	sl := &e.slots[idx]
	if !sl.occupied() || sl.generation != k.Generation() {
		return nil, false
	}
	return sl, true
}

// Contains reports whether k resolves.
func (e *Extent) Contains(k Key) bool {
	_, ok := e.lookup(k)
	return ok
}

// Get returns a copy of the soldier behind k. Stale, removed and unknown keys
// report false.
func (e *Extent) Get(k Key) (Soldier, bool) {
	sl, ok := e.lookup(k)
	if !ok {
		return nil, false
	}
	return sl.soldier.Clone(), true
}

// Update applies mutator to the soldier behind k. The change is committed only
// when mutator returns nil. It reports false when k does not resolve.
func (e *Extent) Update(k Key, mutator func(Soldier) error) (bool, error) {
	sl, ok := e.lookup(k)
	if !ok {
		return false, nil
	}
	working := sl.soldier.Clone()
	if err := mutator(working); err != nil {
		return true, err
	}
	sl.soldier = working
	return true, nil
}

// GetMultiple resolves keys in order and silently omits any that do not
// resolve. It never fails; use GetEach to learn which keys were missing.
func (e *Extent) GetMultiple(keys []Key) []Soldier {
	out := make([]Soldier, 0, len(keys))
	for _, k := range keys {
		if s, ok := e.Get(k); ok {
			out = append(out, s)
		}
	}
	return out
}

// Lookup is the per-key result of GetEach.
type Lookup struct {
	Key     Key
	Soldier Soldier
	Found   bool
}

// GetEach resolves every key and reports each outcome.
func (e *Extent) GetEach(keys []Key) []Lookup {
	out := make([]Lookup, 0, len(keys))
	for _, k := range keys {
		s, ok := e.Get(k)
		out = append(out, Lookup{Key: k, Soldier: s, Found: ok})
	}
	return out
}

// Remove deletes the soldier behind k. Removing a stale or absent key is a
// no-op and reports false.
func (e *Extent) Remove(k Key) bool {
	sl, ok := e.lookup(k)
	if !ok {
		return false
	}
	sl.soldier = nil
	e.live--
	if sl.generation == math.MaxUint32 {
		sl.generation = 0
		return true
	}
	sl.generation++
	e.free = append(e.free, k.Index())
	return true
}

// Clear removes every soldier. Existing keys become stale.
func (e *Extent) Clear() {
	for i := range e.slots {
		if e.slots[i].occupied() {
			e.Remove(domain.KeyFromParts(uint32(i), e.slots[i].generation))
		}
	}
}

// Len returns the number of live soldiers.
func (e *Extent) Len() int { return e.live }

// Each visits live soldiers in slot order until fn returns false. fn receives copies.
func (e *Extent) Each(fn func(Key, Soldier) bool) {
	for i := range e.slots {
		sl := &e.slots[i]
		if !sl.occupied() {
			continue
		}
		if !fn(domain.KeyFromParts(uint32(i), sl.generation), sl.soldier.Clone()) {
			return
		}
	}
}

// Keys lists live keys in slot order.
func (e *Extent) Keys() []Key {
	return e.scan(func(Soldier) bool { return true })
}

func (e *Extent) scan(match func(Soldier) bool) []Key {
	var out []Key
	for i := range e.slots {
		sl := &e.slots[i]
		if sl.occupied() && match(sl.soldier) {
			out = append(out, domain.KeyFromParts(uint32(i), sl.generation))
		}
	}
	return out
}

// FindByName returns the first soldier, in slot order, whose name equals name.
func (e *Extent) FindByName(name string) (Key, bool) {
	for i := range e.slots {
		sl := &e.slots[i]
		if sl.occupied() && sl.soldier.Name() == name {
			return domain.KeyFromParts(uint32(i), sl.generation), true
		}
	}
	return Key{}, false
}

// FindByNamePattern compiles pattern as a regular expression and returns every
// soldier whose name contains a match, in slot order.
func (e *Extent) FindByNamePattern(pattern string) ([]Key, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, domain.WrapError(domain.CodeValidation, err, "invalid name pattern %q", pattern)
	}
	return e.FindByRegexp(re), nil
}

// FindByRegexp returns every soldier whose name matches re, in slot order.
func (e *Extent) FindByRegexp(re *regexp.Regexp) []Key {
	if re == nil {
		return nil
	}
	return e.scan(func(s Soldier) bool { return re.MatchString(s.Name()) })
}

// FindByRank returns every soldier holding exactly rank, in slot order.
func (e *Extent) FindByRank(rank Rank) []Key {
	return e.scan(func(s Soldier) bool { return s.Rank() == rank })
}

// FindByVariant returns every soldier of the given variant, in slot order.
func (e *Extent) FindByVariant(variant Variant) []Key {
	return e.scan(func(s Soldier) bool { return s.Variant() == variant })
}
