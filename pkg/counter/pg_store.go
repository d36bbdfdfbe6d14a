package counter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgDB is the subset of pgxpool.Pool the store needs, so the store also
// works inside an existing transaction.
type pgDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore is a Store backed by the period_counters table. Both rollover
// and the limit check happen inside a single conditional upsert, so the
// database serializes concurrent callers on the row and two increments can
// never both take the last remaining slot.
type PGStore struct {
	db pgDB
}

// NewPGStore returns a Store backed by PostgreSQL.
func NewPGStore(db pgDB) *PGStore {
	if db == nil {
		panic("counter: pg connection cannot be nil")
	}
	return &PGStore{db: db}
}

const pgPeekQuery = `
INSERT INTO period_counters (subject_key, period_kind, count, period_anchor)
VALUES ($1, $2, 0, $3)
ON CONFLICT (subject_key, period_kind) DO UPDATE
SET count = CASE WHEN period_counters.period_anchor < EXCLUDED.period_anchor
                 THEN 0 ELSE period_counters.count END,
    period_anchor = GREATEST(period_counters.period_anchor, EXCLUDED.period_anchor)
RETURNING count`

const pgIncrementQuery = `
INSERT INTO period_counters (subject_key, period_kind, count, period_anchor)
VALUES ($1, $2, 1, $3)
ON CONFLICT (subject_key, period_kind) DO UPDATE
SET count = CASE WHEN period_counters.period_anchor < EXCLUDED.period_anchor
                 THEN 1 ELSE period_counters.count + 1 END,
    period_anchor = GREATEST(period_counters.period_anchor, EXCLUDED.period_anchor)
WHERE (CASE WHEN period_counters.period_anchor < EXCLUDED.period_anchor
            THEN 1 ELSE period_counters.count + 1 END) <= $4
RETURNING count`

const pgDecrementQuery = `
UPDATE period_counters
SET count = GREATEST(count - 1, 0)
WHERE subject_key = $1 AND period_kind = $2`

func (s *PGStore) Peek(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (Snapshot, error) {
	if !kind.Valid() {
		return Snapshot{}, ErrUnknownPeriodKind
	}
	if limit < 0 {
		return Snapshot{}, ErrNegativeLimit
	}

	anchor := PeriodStart(kind, now)
	var count int64
	if err := s.db.QueryRow(ctx, pgPeekQuery, key, kind, anchor).Scan(&count); err != nil {
		return Snapshot{}, errors.Join(ErrStoreUnavailable, err)
	}
	return snapshot(count, limit, kind, now), nil
}

func (s *PGStore) Increment(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (IncrementResult, error) {
	if !kind.Valid() {
		return IncrementResult{}, ErrUnknownPeriodKind
	}
	if limit < 0 {
		return IncrementResult{}, ErrNegativeLimit
	}

	// A zero limit can never admit; skip the insert path, which would
	// otherwise write an unconditional first row.
	if limit == 0 {
		snap, err := s.Peek(ctx, key, kind, limit, now)
		if err != nil {
			return IncrementResult{}, err
		}
		return IncrementResult{Count: snap.Count, Allowed: false}, nil
	}

	anchor := PeriodStart(kind, now)
	var count int64
	err := s.db.QueryRow(ctx, pgIncrementQuery, key, kind, anchor, limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		// Refused by the WHERE clause: counter full for this period.
		snap, err := s.Peek(ctx, key, kind, limit, now)
		if err != nil {
			return IncrementResult{}, err
		}
		return IncrementResult{Count: snap.Count, Allowed: false}, nil
	}
	if err != nil {
		return IncrementResult{}, errors.Join(ErrStoreUnavailable, err)
	}
	return IncrementResult{Count: count, Allowed: true}, nil
}

func (s *PGStore) Decrement(ctx context.Context, key string, kind PeriodKind) error {
	if !kind.Valid() {
		return ErrUnknownPeriodKind
	}
	if _, err := s.db.Exec(ctx, pgDecrementQuery, key, kind); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
