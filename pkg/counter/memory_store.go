package counter

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count  int64
	anchor time.Time
}

// MemoryStore is an in-memory Store for tests and single-process setups.
// All operations run under one mutex, which makes rollover and the
// conditional increment trivially atomic.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
	}
}

func memKey(key string, kind PeriodKind) string {
	return key + ":" + string(kind)
}

// get returns the counter for (key, kind), creating it lazily and applying
// the rollover. Callers must hold s.mu.
func (s *MemoryStore) get(key string, kind PeriodKind, now time.Time) *memoryCounter {
	k := memKey(key, kind)
	c, ok := s.counters[k]
	anchor := PeriodStart(kind, now)
	if !ok {
		c = &memoryCounter{anchor: anchor}
		s.counters[k] = c
		return c
	}
	if c.anchor.Before(anchor) {
		c.count = 0
		c.anchor = anchor
	}
	return c
}

func (s *MemoryStore) Peek(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (Snapshot, error) {
	if !kind.Valid() {
		return Snapshot{}, ErrUnknownPeriodKind
	}
	if limit < 0 {
		return Snapshot{}, ErrNegativeLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(key, kind, now)
	return snapshot(c.count, limit, kind, now), nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (IncrementResult, error) {
	if !kind.Valid() {
		return IncrementResult{}, ErrUnknownPeriodKind
	}
	if limit < 0 {
		return IncrementResult{}, ErrNegativeLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(key, kind, now)
	if c.count+1 > limit {
		return IncrementResult{Count: c.count, Allowed: false}, nil
	}
	c.count++
	return IncrementResult{Count: c.count, Allowed: true}, nil
}

func (s *MemoryStore) Decrement(ctx context.Context, key string, kind PeriodKind) error {
	if !kind.Valid() {
		return ErrUnknownPeriodKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[memKey(key, kind)]; ok && c.count > 0 {
		c.count--
	}
	return nil
}
