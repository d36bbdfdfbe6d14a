package trial

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// PGLedgerStore persists the trial ledger in PostgreSQL. The
// single-active-trial invariant is enforced twice: a partial unique index
// on (user_id) WHERE status = 'active' backstops the explicit check inside
// the Append transaction.
type PGLedgerStore struct {
	pool *pgxpool.Pool
}

// NewPGLedgerStore returns a LedgerStore backed by PostgreSQL.
func NewPGLedgerStore(pool *pgxpool.Pool) *PGLedgerStore {
	if pool == nil {
		panic("trial: pg pool cannot be nil")
	}
	return &PGLedgerStore{pool: pool}
}

const ledgerColumns = `id, user_id, program_id, tier, starts_at, ends_at,
       status, converted_at, converted_to, source, created_at`

func scanEntry(row pgx.Row) (*LedgerEntry, error) {
	var e LedgerEntry
	var convertedTo *string
	err := row.Scan(&e.ID, &e.UserID, &e.ProgramID, &e.Tier, &e.StartsAt, &e.EndsAt,
		&e.Status, &e.ConvertedAt, &convertedTo, &e.Source, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if convertedTo != nil {
		tier := quota.Tier(*convertedTo)
		e.ConvertedTo = &tier
	}
	return &e, nil
}

func (s *PGLedgerStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM trial_ledger WHERE user_id = $1 ORDER BY starts_at, id`,
		userID)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PGLedgerStore) Get(ctx context.Context, id int64) (*LedgerEntry, error) {
	entry, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM trial_ledger WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return entry, nil
}

func (s *PGLedgerStore) Append(ctx context.Context, entry LedgerEntry, within func(ctx context.Context) error) (*LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	created, err := scanEntry(tx.QueryRow(ctx,
		`INSERT INTO trial_ledger (user_id, program_id, tier, starts_at, ends_at, status, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+ledgerColumns,
		entry.UserID, entry.ProgramID, entry.Tier, entry.StartsAt, entry.EndsAt,
		entry.Status, entry.Source, entry.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveTrialExists
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if within != nil {
		if err := within(ctx); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return created, nil
}

func (s *PGLedgerStore) ListActiveExpiring(ctx context.Context, now time.Time) ([]LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM trial_ledger WHERE status = 'active' AND ends_at <= $1 ORDER BY id`,
		now)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PGLedgerStore) MarkExpired(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trial_ledger SET status = 'expired' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGLedgerStore) MarkConverted(ctx context.Context, id int64, to quota.Tier, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trial_ledger SET status = 'converted', converted_to = $2, converted_at = $3
		 WHERE id = $1 AND status = 'active'`,
		id, to, at)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the entry is missing or it already left the active
		// state; distinguish for the caller.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// LockUser takes a session-scoped advisory lock keyed by the user id on a
// dedicated connection. It is the row-level-lock equivalent the grant path
// requires; no cross-user or global lock is involved.
func (s *PGLedgerStore) LockUser(ctx context.Context, userID uuid.UUID) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if _, err := conn.Exec(ctx,
		`SELECT pg_advisory_lock(hashtextextended($1, 0))`, userID.String()); err != nil {
		conn.Release()
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return func() {
		// Unlock must run even when the caller's context is cancelled.
		_, _ = conn.Exec(context.WithoutCancel(ctx),
			`SELECT pg_advisory_unlock(hashtextextended($1, 0))`, userID.String())
		conn.Release()
	}, nil
}

func collectEntries(rows pgx.Rows) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PGProgramStore reads trial program definitions from PostgreSQL.
type PGProgramStore struct {
	pool *pgxpool.Pool
}

// NewPGProgramStore returns a ProgramStore backed by PostgreSQL.
func NewPGProgramStore(pool *pgxpool.Pool) *PGProgramStore {
	if pool == nil {
		panic("trial: pg pool cannot be nil")
	}
	return &PGProgramStore{pool: pool}
}

func (s *PGProgramStore) GetProgram(ctx context.Context, id uuid.UUID) (*Program, error) {
	var p Program
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, target_tier, duration_days, active_from, active_until,
		        allow_reentry, cooldown_days, disabled
		 FROM trial_programs WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.TargetTier, &p.DurationDays, &p.ActiveFrom, &p.ActiveUntil,
			&p.AllowReentry, &p.CooldownDays, &p.Disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProgramNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return &p, nil
}
