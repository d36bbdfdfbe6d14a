package trial

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// MemoryLedgerStore is an in-memory LedgerStore for tests and development.
// Per-user serialization uses a keyed mutex, the in-memory equivalent of a
// row-level lock.
type MemoryLedgerStore struct {
	mu      sync.Mutex
	entries []*LedgerEntry
	nextID  int64

	userLocks map[uuid.UUID]*sync.Mutex
}

// NewMemoryLedgerStore returns an empty in-memory ledger.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		nextID:    1,
		userLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *MemoryLedgerStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []LedgerEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b LedgerEntry) int {
		return a.StartsAt.Compare(b.StartsAt)
	})
	return out, nil
}

func (s *MemoryLedgerStore) Get(ctx context.Context, id int64) (*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return nil, ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *MemoryLedgerStore) Append(ctx context.Context, entry LedgerEntry, within func(ctx context.Context) error) (*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.UserID == entry.UserID && e.IsActive() {
			return nil, ErrActiveTrialExists
		}
	}

	if within != nil {
		if err := within(ctx); err != nil {
			return nil, err
		}
	}

	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	stored := entry
	s.entries = append(s.entries, &stored)

	copied := stored
	return &copied, nil
}

func (s *MemoryLedgerStore) ListActiveExpiring(ctx context.Context, now time.Time) ([]LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []LedgerEntry
	for _, e := range s.entries {
		if e.IsActive() && !e.EndsAt.After(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *MemoryLedgerStore) MarkExpired(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return false, ErrEntryNotFound
	}
	if !e.IsActive() {
		return false, nil
	}
	e.Status = StatusExpired
	return true, nil
}

func (s *MemoryLedgerStore) MarkConverted(ctx context.Context, id int64, to quota.Tier, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return ErrEntryNotFound
	}
	if !e.IsActive() {
		return ErrInvalidState
	}
	e.Status = StatusConverted
	e.ConvertedAt = &at
	e.ConvertedTo = &to
	return nil
}

func (s *MemoryLedgerStore) LockUser(ctx context.Context, userID uuid.UUID) (func(), error) {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

// find returns the stored entry by id. Callers must hold s.mu.
func (s *MemoryLedgerStore) find(id int64) *LedgerEntry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// MemoryProgramStore is an in-memory ProgramStore for tests and
// development.
type MemoryProgramStore struct {
	mu       sync.RWMutex
	programs map[uuid.UUID]Program
}

// NewMemoryProgramStore returns a program store seeded with the given
// programs.
func NewMemoryProgramStore(programs ...Program) *MemoryProgramStore {
	s := &MemoryProgramStore{
		programs: make(map[uuid.UUID]Program, len(programs)),
	}
	for _, p := range programs {
		s.programs[p.ID] = p
	}
	return s
}

// Put adds or replaces a program.
func (s *MemoryProgramStore) Put(program Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[program.ID] = program
}

func (s *MemoryProgramStore) GetProgram(ctx context.Context, id uuid.UUID) (*Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.programs[id]
	if !ok {
		return nil, ErrProgramNotFound
	}
	return &p, nil
}
