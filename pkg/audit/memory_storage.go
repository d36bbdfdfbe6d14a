package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage is an in-memory Storage for tests and development.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStorage returns an empty in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first, matching the durable implementation.
	var out []Record
	for _, r := range slices.Backward(s.records) {
		if !matches(r, criteria) {
			continue
		}
		out = append(out, r)
		if criteria.Limit > 0 && len(out) >= criteria.Limit {
			break
		}
	}
	return out, nil
}

func matches(r Record, c Criteria) bool {
	if c.Actor != "" && r.Actor != c.Actor {
		return false
	}
	if c.TargetUserID != "" && r.TargetUserID != c.TargetUserID {
		return false
	}
	if c.Action != "" && r.Action != c.Action {
		return false
	}
	if c.ForcedOnly && !r.Forced {
		return false
	}
	if !c.Since.IsZero() && r.CreatedAt.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && r.CreatedAt.After(c.Until) {
		return false
	}
	return true
}
