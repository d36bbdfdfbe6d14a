package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/audit"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Justification length floors. Forcing past a failed eligibility check
// demands a substantially longer explanation than an ordinary admin grant.
const (
	minJustificationLen       = 5
	minForcedJustificationLen = 20
)

// TierMutator applies the granted tier to the user's account. It runs
// inside the same transaction scope as the ledger write, so both succeed
// or both fail.
type TierMutator func(ctx context.Context, userID uuid.UUID, tier quota.Tier) error

// GrantInput is the input to Service.Grant.
type GrantInput struct {
	UserID       uuid.UUID
	Tier         quota.Tier
	DurationDays int
	ProgramID    *uuid.UUID

	// Actor is the administrator performing the grant; empty for
	// self-serve redemptions.
	Actor         string
	Justification string
}

// ForceGrantInput is the input to Service.ForceGrant.
type ForceGrantInput struct {
	GrantInput

	// OverriddenReason is the eligibility reason code the administrator
	// is deliberately overriding.
	OverriddenReason ReasonCode
}

// Service orchestrates trial grants: evaluator, ledger write, tier
// mutation and audit logging.
type Service struct {
	ledger   LedgerStore
	programs ProgramStore
	policy   quota.SystemPolicy
	auditLog audit.Logger

	mutateTier TierMutator
	log        *slog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTierMutator sets the callback that applies tier changes.
func WithTierMutator(fn TierMutator) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.mutateTier = fn
		}
	}
}

// WithLogger sets the structured logger. Grants log at info, expected
// refusals at debug; neither is a system error.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the trial grant service. The audit logger is
// mandatory: forced grants must always leave an audit trail.
func NewService(ledger LedgerStore, programs ProgramStore, policy quota.SystemPolicy, auditLog audit.Logger, opts ...ServiceOption) *Service {
	if ledger == nil {
		panic("trial: ledger store cannot be nil")
	}
	if auditLog == nil {
		panic("trial: audit logger cannot be nil")
	}

	s := &Service{
		ledger:     ledger,
		programs:   programs,
		policy:     policy,
		auditLog:   auditLog,
		mutateTier: func(ctx context.Context, userID uuid.UUID, tier quota.Tier) error { return nil },
		log:        slog.New(slog.DiscardHandler),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant runs the eligibility evaluator and, on success, appends an active
// ledger entry and mutates the user's tier in one transaction scope.
//
// On refusal it returns an *IneligibleError carrying the reason code, the
// full trial history and CanForce=true; the caller decides whether to
// offer the force path. The service never force-grants on its own.
func (s *Service) Grant(ctx context.Context, in GrantInput) (*LedgerEntry, error) {
	now := s.now()

	program, err := s.resolveProgram(ctx, in.ProgramID, &in, now)
	if err != nil {
		return nil, err
	}
	if err := s.validateGrant(in, minJustificationLen); err != nil {
		return nil, err
	}

	unlock, err := s.ledger.LockUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	history, err := s.ledger.ListByUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if elig := Evaluate(history, program, s.policy, now); !elig.Eligible {
		s.log.DebugContext(ctx, "trial grant refused",
			slog.String("user_id", in.UserID.String()),
			slog.String("reason", string(elig.Reason)))
		return nil, &IneligibleError{
			Reason:   elig.Reason,
			Details:  elig.Details,
			History:  history,
			CanForce: true,
		}
	}

	entry, err := s.append(ctx, in, grantSource(in), now)
	if err != nil {
		return nil, err
	}

	if in.Actor != "" {
		if err := s.auditLog.Record(ctx, "trial.grant", in.Actor, in.UserID.String(),
			audit.WithChange("", string(in.Tier)),
			audit.WithJustification(in.Justification),
			audit.WithMetadata("ledger_entry_id", entry.ID),
		); err != nil {
			s.log.ErrorContext(ctx, "failed to write audit record for admin grant",
				slog.String("user_id", in.UserID.String()),
				slog.Any("error", err))
		}
	}

	s.log.InfoContext(ctx, "trial granted",
		slog.String("user_id", in.UserID.String()),
		slog.String("tier", string(in.Tier)),
		slog.String("source", string(entry.Source)))
	return entry, nil
}

// ForceGrant skips the evaluator's gate and grants regardless of
// eligibility. It requires the administrator's identity, a justification
// of at least 20 characters and the reason code being overridden, and it
// always writes an audit record.
//
// The single-active-trial invariant is structural, not policy: even a
// forced grant is refused with ErrActiveTrialExists while another trial
// is active.
func (s *Service) ForceGrant(ctx context.Context, in ForceGrantInput) (*LedgerEntry, error) {
	now := s.now()

	if in.Actor == "" {
		return nil, ErrActorRequired
	}
	if !in.OverriddenReason.Valid() {
		return nil, ErrOverriddenReasonNeeded
	}

	// The force path ignores the program's own eligibility policy but
	// still resolves it for tier/duration defaults and the source link.
	if _, err := s.resolveProgram(ctx, in.ProgramID, &in.GrantInput, now); err != nil && !errors.Is(err, ErrProgramInactive) {
		return nil, err
	}
	if err := s.validateGrant(in.GrantInput, minForcedJustificationLen); err != nil {
		return nil, err
	}

	unlock, err := s.ledger.LockUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	history, err := s.ledger.ListByUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	entry, err := s.append(ctx, in.GrantInput, SourceAdminGrantForced, now)
	if err != nil {
		return nil, err
	}

	if err := s.auditLog.Record(ctx, "trial.force_grant", in.Actor, in.UserID.String(),
		audit.WithChange("", string(in.Tier)),
		audit.WithJustification(in.Justification),
		audit.WithForced(string(in.OverriddenReason)),
		audit.WithMetadata("prior_trial_count", len(history)),
		audit.WithMetadata("ledger_entry_id", entry.ID),
	); err != nil {
		s.log.ErrorContext(ctx, "failed to write audit record for forced grant",
			slog.String("user_id", in.UserID.String()),
			slog.Any("error", err))
	}

	s.log.InfoContext(ctx, "trial force-granted",
		slog.String("user_id", in.UserID.String()),
		slog.String("actor", in.Actor),
		slog.String("overridden_reason", string(in.OverriddenReason)))
	return entry, nil
}

// SweepExpired transitions every active entry whose end time has passed to
// expired. It is idempotent and tolerates partial failure: one failing
// entry is recorded and the rest of the batch continues.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	expiring, err := s.ledger.ListActiveExpiring(ctx, now)
	if err != nil {
		return SweepResult{}, errors.Join(ErrStoreUnavailable, err)
	}

	result := SweepResult{Found: len(expiring)}
	for _, entry := range expiring {
		transitioned, err := s.ledger.MarkExpired(ctx, entry.ID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("entry %d: %w", entry.ID, err))
			continue
		}
		if transitioned {
			result.Transitioned++
		}
	}

	s.log.InfoContext(ctx, "trial expiry sweep finished",
		slog.Int("found", result.Found),
		slog.Int("transitioned", result.Transitioned),
		slog.Int("failed", result.Failed))
	return result, nil
}

// Convert transitions an active trial to converted, recording the tier the
// user converted to. Converting a non-active entry is an ErrInvalidState.
func (s *Service) Convert(ctx context.Context, entryID int64, to quota.Tier, now time.Time) error {
	if !to.Valid() {
		return quota.ErrUnknownTier
	}
	if err := s.ledger.MarkConverted(ctx, entryID, to, now.UTC()); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "trial converted",
		slog.Int64("entry_id", entryID),
		slog.String("converted_to", string(to)))
	return nil
}

// History returns the user's full trial ledger, oldest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]LedgerEntry, error) {
	return s.ledger.ListByUser(ctx, userID)
}

// Eligibility runs the evaluator without granting, for preview endpoints.
func (s *Service) Eligibility(ctx context.Context, userID uuid.UUID, programID *uuid.UUID) (Eligibility, error) {
	now := s.now()

	var program *Program
	if programID != nil {
		var err error
		program, err = s.loadProgram(ctx, *programID)
		if err != nil {
			return Eligibility{}, err
		}
	}

	history, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}
	return Evaluate(history, program, s.policy, now), nil
}

// resolveProgram loads the program when a program id is given, fills tier
// and duration defaults from it, and checks its activation window.
func (s *Service) resolveProgram(ctx context.Context, programID *uuid.UUID, in *GrantInput, now time.Time) (*Program, error) {
	if programID == nil {
		return nil, nil
	}

	program, err := s.loadProgram(ctx, *programID)
	if err != nil {
		return nil, err
	}

	if in.Tier == "" {
		in.Tier = program.TargetTier
	}
	if in.DurationDays == 0 {
		in.DurationDays = program.DurationDays
	}

	if !program.IsActiveAt(now) {
		return program, ErrProgramInactive
	}
	return program, nil
}

func (s *Service) loadProgram(ctx context.Context, id uuid.UUID) (*Program, error) {
	if s.programs == nil {
		return nil, ErrProgramNotFound
	}
	return s.programs.GetProgram(ctx, id)
}

func (s *Service) validateGrant(in GrantInput, minJustification int) error {
	if in.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if !in.Tier.Valid() || in.Tier == quota.TierFree {
		return quota.ErrUnknownTier
	}
	if in.DurationDays < 1 || in.DurationDays > 365 {
		return ErrInvalidDuration
	}
	// Self-serve redemptions carry no justification; administrative
	// grants always do.
	if (in.Actor != "" || minJustification > minJustificationLen) && len(in.Justification) < minJustification {
		return fmt.Errorf("%w: need at least %d characters", ErrJustificationTooShort, minJustification)
	}
	return nil
}

func (s *Service) append(ctx context.Context, in GrantInput, source Source, now time.Time) (*LedgerEntry, error) {
	entry := LedgerEntry{
		UserID:    in.UserID,
		ProgramID: in.ProgramID,
		Tier:      in.Tier,
		StartsAt:  now,
		EndsAt:    now.AddDate(0, 0, in.DurationDays),
		Status:    StatusActive,
		Source:    source,
		CreatedAt: now,
	}
	return s.ledger.Append(ctx, entry, func(ctx context.Context) error {
		return s.mutateTier(ctx, in.UserID, in.Tier)
	})
}

func grantSource(in GrantInput) Source {
	switch {
	case in.ProgramID != nil:
		return SourceProgram
	case in.Actor != "":
		return SourceAdminGrant
	default:
		return SourceSelfServe
	}
}
