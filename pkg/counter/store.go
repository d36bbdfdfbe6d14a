package counter

import (
	"context"
	"time"
)

// Snapshot is a read-only view of one counter.
type Snapshot struct {
	Count     int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// IncrementResult reports the outcome of a conditional increment. When
// Allowed is false the stored counter was left unchanged and Count holds
// the current (unincremented) value.
type IncrementResult struct {
	Count   int64
	Allowed bool
}

// Store is the durable counter backend. Implementations must apply the
// lazy rollover and the limit check atomically with respect to concurrent
// callers: a read-check-write must never be observable as separate steps.
type Store interface {
	// Peek returns the counter state for (key, kind), applying the lazy
	// rollover first if now has crossed a period boundary since the stored
	// anchor. Rollover is idempotent and must not lose concurrent updates.
	Peek(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (Snapshot, error)

	// Increment atomically increments the counter only if the
	// post-increment count would not exceed limit; otherwise it reports
	// Allowed=false and leaves the counter unchanged.
	Increment(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (IncrementResult, error)

	// Decrement undoes one increment, flooring at zero. Used to roll back
	// a partially applied admission when the second period refuses.
	Decrement(ctx context.Context, key string, kind PeriodKind) error
}

func snapshot(count, limit int64, kind PeriodKind, now time.Time) Snapshot {
	return Snapshot{
		Count:     count,
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   NextReset(kind, now),
	}
}
