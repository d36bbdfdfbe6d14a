package trial

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// LedgerStore persists the trial ledger. Entries are append-only: the only
// mutations are the legal status transitions, and implementations must
// apply those conditionally so a transition applied twice has no
// additional effect.
type LedgerStore interface {
	// ListByUser returns the user's full ledger ordered by start time.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]LedgerEntry, error)

	// Get returns one entry by id, or ErrEntryNotFound.
	Get(ctx context.Context, id int64) (*LedgerEntry, error)

	// Append inserts a new active entry. The insert and the within
	// callback run inside the same transaction scope: if within fails,
	// the entry is not persisted. A second active entry for the same user
	// is refused with ErrActiveTrialExists.
	Append(ctx context.Context, entry LedgerEntry, within func(ctx context.Context) error) (*LedgerEntry, error)

	// ListActiveExpiring returns active entries whose end time has passed.
	ListActiveExpiring(ctx context.Context, now time.Time) ([]LedgerEntry, error)

	// MarkExpired transitions active -> expired. Returns false without
	// error when the entry is no longer active, which makes the sweep
	// idempotent and safe to run concurrently.
	MarkExpired(ctx context.Context, id int64) (bool, error)

	// MarkConverted transitions active -> converted, recording the target
	// tier and timestamp. Any other starting state is ErrInvalidState.
	MarkConverted(ctx context.Context, id int64, to quota.Tier, at time.Time) error

	// LockUser acquires the per-user mutual-exclusion boundary that
	// serializes grant operations. The returned function releases it.
	LockUser(ctx context.Context, userID uuid.UUID) (func(), error)
}

// ProgramStore loads trial program definitions. The administrative CRUD
// around programs lives outside the engine; the engine only reads them.
type ProgramStore interface {
	// GetProgram returns a program by id, or ErrProgramNotFound.
	GetProgram(ctx context.Context, id uuid.UUID) (*Program, error)
}
