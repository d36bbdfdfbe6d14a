package trial

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

// Source tags how a trial was granted.
type Source string

const (
	SourceSelfServe        Source = "self_serve"
	SourceProgram          Source = "program"
	SourceAdminGrant       Source = "admin_grant"
	SourceAdminGrantForced Source = "admin_grant_forced"
)

// LedgerEntry is one row of the trial ledger: an immutable record of one
// granted trial. Only the status and conversion fields ever change after
// creation, and only through the legal lifecycle transitions.
type LedgerEntry struct {
	ID          int64       `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	ProgramID   *uuid.UUID  `json:"program_id,omitempty"` // nil means self-serve, non-promotional
	Tier        quota.Tier  `json:"tier"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	Status      Status      `json:"status"`
	ConvertedAt *time.Time  `json:"converted_at,omitempty"`
	ConvertedTo *quota.Tier `json:"converted_to,omitempty"`
	Source      Source      `json:"source"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsActive reports whether the trial is currently active.
func (e *LedgerEntry) IsActive() bool {
	return e.Status == StatusActive
}

// Program is a named promotional policy under which trials are granted.
// Once referenced by a ledger entry, only future-facing fields are edited
// administratively.
type Program struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	TargetTier  quota.Tier `json:"target_tier"`
	DurationDays int       `json:"duration_days"`

	// Activation window. A nil bound is open-ended.
	ActiveFrom  *time.Time `json:"active_from,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`

	// AllowReentry controls whether users who already had any trial may
	// redeem this program. Defaults to false: new users only.
	AllowReentry bool `json:"allow_reentry"`

	// CooldownDays is the minimum number of whole days since a prior
	// trial ended before re-eligibility. Only meaningful with
	// AllowReentry; range 0-365.
	CooldownDays int `json:"cooldown_days"`

	Disabled bool `json:"disabled"`
}

// Validate checks the program's policy fields.
func (p *Program) Validate() error {
	if !p.TargetTier.Valid() {
		return quota.ErrUnknownTier
	}
	if p.DurationDays < 1 || p.DurationDays > 365 {
		return ErrInvalidDuration
	}
	if p.CooldownDays < 0 || p.CooldownDays > 365 {
		return ErrInvalidCooldown
	}
	return nil
}

// IsActiveAt reports whether the program accepts redemptions at the given
// time.
func (p *Program) IsActiveAt(now time.Time) bool {
	if p.Disabled {
		return false
	}
	if p.ActiveFrom != nil && now.Before(*p.ActiveFrom) {
		return false
	}
	if p.ActiveUntil != nil && now.After(*p.ActiveUntil) {
		return false
	}
	return true
}

// SweepResult summarizes one expiry sweep run. A per-entry failure never
// aborts the rest of the batch; failures are collected in Errors.
type SweepResult struct {
	Found        int     `json:"found"`
	Transitioned int     `json:"transitioned"`
	Failed       int     `json:"failed"`
	Errors       []error `json:"-"`
}
