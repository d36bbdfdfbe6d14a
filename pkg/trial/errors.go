package trial

import (
	"errors"
	"fmt"
)

var (
	// Validation errors: malformed caller input.
	ErrInvalidDuration        = errors.New("trial duration out of range (1-365 days)")
	ErrInvalidCooldown        = errors.New("program cooldown out of range (0-365 days)")
	ErrJustificationTooShort  = errors.New("justification too short")
	ErrActorRequired          = errors.New("actor identity is required")
	ErrOverriddenReasonNeeded = errors.New("forced grant requires the overridden reason code")

	// Program errors.
	ErrProgramNotFound = errors.New("trial program not found")
	ErrProgramInactive = errors.New("trial program is not accepting redemptions")

	// State errors: a logic bug or a race that escaped the locking
	// discipline. Fatal to the operation, not to the process.
	ErrInvalidState      = errors.New("illegal trial status transition")
	ErrEntryNotFound     = errors.New("trial ledger entry not found")
	ErrActiveTrialExists = errors.New("user already has an active trial")

	ErrStoreUnavailable = errors.New("trial ledger store unavailable")
)

// IneligibleError is the expected, user-facing outcome of a failed
// eligibility check. It is never logged as a system error. CanForce is
// always true: an administrator can structurally force any refusal, the
// service just never does so silently.
type IneligibleError struct {
	Reason   ReasonCode
	Details  Details
	History  []LedgerEntry
	CanForce bool
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("trial ineligible: %s", e.Reason)
}

// AsIneligible unwraps an IneligibleError from err, if present.
func AsIneligible(err error) (*IneligibleError, bool) {
	var ie *IneligibleError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
