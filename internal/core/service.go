package core

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"roster/pkg/domain"

	"github.com/shopspring/decimal"
)

// Service guards one Extent with a RWMutex and instruments every operation
// with the configured logger, audit recorder, metrics recorder and tracer.
type Service struct {
	mu      sync.RWMutex
	extent  *Extent
	store   SnapshotStore
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service over an empty extent.
func NewService(opts ...ServiceOption) *Service {
	return NewServiceWithExtent(NewExtent(), opts...)
}

// NewServiceWithExtent constructs a service that takes ownership of ext.
func NewServiceWithExtent(ext *Extent, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if ext == nil {
		ext = NewExtent()
	}
	ext.SetNowFunc(cfg.clock.Now)
	return &Service{
		extent:  ext,
		store:   cfg.store,
		clock:   cfg.clock,
		logger:  cfg.logger,
		audit:   cfg.audit,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// ErrNotFound is returned when a key does not resolve to a live soldier.
type ErrNotFound struct {
	Key Key
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("soldier %s not found", e.Key)
}

// ErrNoStore is returned by Persist and Restore when no snapshot store is configured.
var ErrNoStore = domain.NewError(domain.CodeIO, "no snapshot store configured")

// run executes fn and reports the outcome. key is recorded on audit entries
// for mutating operations and may be empty.
func (s *Service) run(ctx context.Context, op string, mutating bool, key func() string, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn()
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	var keyText string
	if key != nil {
		keyText = key()
	}
	if err != nil {
		s.logger.Error("roster operation failed", "operation", op, "key", keyText, "error", err, "duration", duration)
	} else {
		s.logger.Debug("roster operation", "operation", op, "key", keyText, "duration", duration)
	}
	if mutating {
		s.recordAudit(ctx, op, keyText, duration, err)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, key string, duration time.Duration, err error) {
	entry := AuditEntry{
		Operation: op,
		Key:       key,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func keyOf(k *Key) func() string {
	return func() string {
		if k == nil || k.IsZero() {
			return ""
		}
		return k.String()
	}
}

// Enlist creates a soldier of the given variant.
func (s *Service) Enlist(ctx context.Context, variant Variant, name string, opts ...domain.Option) (Key, error) {
	var created Key
	err := s.run(ctx, "enlist", true, keyOf(&created), func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var err error
		created, err = s.extent.Create(variant, name, opts...)
		return err
	})
	return created, err
}

// Soldier returns a copy of the soldier behind key.
func (s *Service) Soldier(ctx context.Context, key Key) (Soldier, bool) {
	var (
		found Soldier
		ok    bool
	)
	_ = s.run(ctx, "get_soldier", false, keyOf(&key), func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		found, ok = s.extent.Get(key)
		return nil
	})
	return found, ok
}

// Entry pairs a key with a copy of its soldier.
type Entry struct {
	Key     Key
	Soldier Soldier
}

// Roster lists every live soldier in slot order.
func (s *Service) Roster(ctx context.Context) []Entry {
	var out []Entry
	_ = s.run(ctx, "roster", false, nil, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out = make([]Entry, 0, s.extent.Len())
		s.extent.Each(func(k Key, sol Soldier) bool {
			out = append(out, Entry{Key: k, Soldier: sol})
			return true
		})
		return nil
	})
	return out
}

// Lookup resolves keys individually, reporting which ones are gone.
func (s *Service) Lookup(ctx context.Context, keys []Key) []Lookup {
	var out []Lookup
	_ = s.run(ctx, "lookup", false, nil, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out = s.extent.GetEach(keys)
		return nil
	})
	return out
}

// Update applies mutator to the soldier behind key and returns the committed copy.
func (s *Service) Update(ctx context.Context, key Key, mutator func(Soldier) error) (Soldier, error) {
	var updated Soldier
	err := s.run(ctx, "update_soldier", true, keyOf(&key), func() error {
		return s.update(key, mutator, &updated)
	})
	return updated, err
}

func (s *Service) update(key Key, mutator func(Soldier) error, out *Soldier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found, err := s.extent.Update(key, mutator)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound{Key: key}
	}
	if out != nil {
		*out, _ = s.extent.Get(key)
	}
	return nil
}

func (s *Service) changeRank(ctx context.Context, op string, key Key, next func(Soldier) Rank) (Rank, error) {
	var rank Rank
	err := s.run(ctx, op, true, keyOf(&key), func() error {
		return s.update(key, func(sol Soldier) error {
			rank = next(sol)
			return sol.SetRank(rank)
		}, nil)
	})
	return rank, err
}

// Promote moves the soldier one grade up and returns the new rank.
func (s *Service) Promote(ctx context.Context, key Key) (Rank, error) {
	return s.changeRank(ctx, "promote", key, func(sol Soldier) Rank { return sol.Rank().Promote() })
}

// Demote moves the soldier one grade down and returns the new rank.
func (s *Service) Demote(ctx context.Context, key Key) (Rank, error) {
	return s.changeRank(ctx, "demote", key, func(sol Soldier) Rank { return sol.Rank().Demote() })
}

// ResetRank returns the soldier to Private.
func (s *Service) ResetRank(ctx context.Context, key Key) (Rank, error) {
	return s.changeRank(ctx, "reset_rank", key, func(sol Soldier) Rank { return sol.Rank().Reset() })
}

// Rename changes the soldier's name. Blank names are rejected.
func (s *Service) Rename(ctx context.Context, key Key, name string) error {
	return s.run(ctx, "rename", true, keyOf(&key), func() error {
		return s.update(key, func(sol Soldier) error { return sol.SetName(name) }, nil)
	})
}

// Discharge removes the soldier. It reports false when key was already stale.
func (s *Service) Discharge(ctx context.Context, key Key) bool {
	var removed bool
	_ = s.run(ctx, "discharge", true, keyOf(&key), func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		removed = s.extent.Remove(key)
		return nil
	})
	return removed
}

// FindByName returns the first soldier named name.
func (s *Service) FindByName(ctx context.Context, name string) (Key, bool) {
	var (
		k  Key
		ok bool
	)
	_ = s.run(ctx, "find_by_name", false, nil, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		k, ok = s.extent.FindByName(name)
		return nil
	})
	return k, ok
}

// FindByNamePattern returns every soldier whose name matches pattern.
func (s *Service) FindByNamePattern(ctx context.Context, pattern string) ([]Key, error) {
	var keys []Key
	err := s.run(ctx, "find_by_name_pattern", false, nil, func() error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return domain.WrapError(domain.CodeValidation, err, "invalid name pattern %q", pattern)
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		keys = s.extent.FindByRegexp(re)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// FindByRank returns every soldier holding rank.
func (s *Service) FindByRank(ctx context.Context, rank Rank) []Key {
	var keys []Key
	_ = s.run(ctx, "find_by_rank", false, nil, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		keys = s.extent.FindByRank(rank)
		return nil
	})
	return keys
}

// Payroll sums CalculatePay across the roster.
func (s *Service) Payroll(ctx context.Context) decimal.Decimal {
	total := decimal.Zero
	_ = s.run(ctx, "payroll", false, nil, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		s.extent.Each(func(_ Key, sol Soldier) bool {
			total = total.Add(sol.CalculatePay())
			return true
		})
		return nil
	})
	return total
}

// Len returns the number of live soldiers.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extent.Len()
}

// View runs fn with shared access to the extent. fn must not mutate it.
func (s *Service) View(fn func(*Extent) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.extent)
}

// Mutate runs fn with exclusive access to the extent.
func (s *Service) Mutate(ctx context.Context, fn func(*Extent) error) error {
	return s.run(ctx, "mutate", true, nil, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.extent)
	})
}

// Persist saves the whole extent to the configured snapshot store.
func (s *Service) Persist(ctx context.Context) error {
	return s.run(ctx, "persist", true, nil, func() error {
		if s.store == nil {
			return ErrNoStore
		}
		s.mu.RLock()
		snap, err := s.extent.ExportState()
		s.mu.RUnlock()
		if err != nil {
			return err
		}
		return s.store.SaveSnapshot(ctx, snap)
	})
}

// Restore replaces the extent with the stored snapshot. On any failure the
// in-memory roster is left as it was.
func (s *Service) Restore(ctx context.Context) error {
	return s.run(ctx, "restore", true, nil, func() error {
		if s.store == nil {
			return ErrNoStore
		}
		snap, err := s.store.LoadSnapshot(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.extent.ImportState(snap)
	})
}

// Store returns the configured snapshot store, if any.
func (s *Service) Store() SnapshotStore { return s.store }

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
