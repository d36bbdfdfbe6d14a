package trial

import (
	"time"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// ReasonCode identifies the first eligibility rule a user failed.
type ReasonCode string

const (
	ReasonActiveTrialExists ReasonCode = "ACTIVE_TRIAL_EXISTS"
	ReasonMaxTrialsReached  ReasonCode = "MAX_TRIALS_REACHED"
	ReasonNewUsersOnly      ReasonCode = "NEW_USERS_ONLY"
	ReasonCooldownPeriod    ReasonCode = "COOLDOWN_PERIOD"
)

// Valid reports whether the code is a known eligibility reason.
func (c ReasonCode) Valid() bool {
	switch c {
	case ReasonActiveTrialExists, ReasonMaxTrialsReached, ReasonNewUsersOnly, ReasonCooldownPeriod:
		return true
	}
	return false
}

// Details carries the structured context for a failed rule. Only the
// fields relevant to the failing reason are populated.
type Details struct {
	ActiveTier       quota.Tier `json:"active_tier,omitempty"`
	ActiveEndsAt     *time.Time `json:"active_ends_at,omitempty"`
	TrialCount       int        `json:"trial_count,omitempty"`
	LifetimeLimit    int        `json:"lifetime_limit,omitempty"`
	LastTrialEndedAt *time.Time `json:"last_trial_ended_at,omitempty"`
	CooldownDays     int        `json:"cooldown_days,omitempty"`
	DaysRemaining    int        `json:"days_remaining,omitempty"`
}

// Eligibility is the outcome of an eligibility evaluation.
type Eligibility struct {
	Eligible bool       `json:"eligible"`
	Reason   ReasonCode `json:"reason_code,omitempty"`
	Details  Details    `json:"details,omitempty"`
}

// Evaluate decides whether a user may redeem a trial. It is pure and
// deterministic: the decision depends only on the arguments.
//
// Rules are applied in order against the user's full ledger; the first
// failing rule determines the reason code:
//
//  1. ACTIVE_TRIAL_EXISTS - any active entry blocks, regardless of program
//  2. MAX_TRIALS_REACHED - total entries at or above the lifetime cap
//  3. NEW_USERS_ONLY - program forbids reentry and the ledger is non-empty
//  4. COOLDOWN_PERIOD - too few whole days since the last trial ended
//
// Rules 3-4 only apply when a program is given; a self-serve evaluation
// (nil program) runs rules 1-2 only. Day counting uses whole 24-hour
// periods in UTC.
func Evaluate(history []LedgerEntry, program *Program, policy quota.SystemPolicy, now time.Time) Eligibility {
	now = now.UTC()

	for i := range history {
		if history[i].IsActive() {
			endsAt := history[i].EndsAt
			return Eligibility{
				Reason: ReasonActiveTrialExists,
				Details: Details{
					ActiveTier:   history[i].Tier,
					ActiveEndsAt: &endsAt,
				},
			}
		}
	}

	if len(history) >= policy.MaxTrialsPerUserLifetime {
		return Eligibility{
			Reason: ReasonMaxTrialsReached,
			Details: Details{
				TrialCount:    len(history),
				LifetimeLimit: policy.MaxTrialsPerUserLifetime,
			},
		}
	}

	if program != nil && len(history) > 0 {
		lastEnd := lastTrialEnd(history)

		if !program.AllowReentry {
			return Eligibility{
				Reason: ReasonNewUsersOnly,
				Details: Details{
					LastTrialEndedAt: &lastEnd,
				},
			}
		}

		if program.CooldownDays > 0 {
			elapsed := wholeDaysSince(lastEnd, now)
			if elapsed < program.CooldownDays {
				return Eligibility{
					Reason: ReasonCooldownPeriod,
					Details: Details{
						LastTrialEndedAt: &lastEnd,
						CooldownDays:     program.CooldownDays,
						DaysRemaining:    program.CooldownDays - elapsed,
					},
				}
			}
		}
	}

	return Eligibility{Eligible: true}
}

// lastTrialEnd returns the most recent EndsAt in the history. The ledger
// is ordered by start time, but a longer earlier trial can outlast a later
// one, so scan for the maximum instead of trusting order.
func lastTrialEnd(history []LedgerEntry) time.Time {
	var last time.Time
	for i := range history {
		if history[i].EndsAt.After(last) {
			last = history[i].EndsAt
		}
	}
	return last
}

// wholeDaysSince counts completed 24-hour periods between then and now.
// Flooring here is what rounds the remaining cooldown days up.
func wholeDaysSince(then, now time.Time) int {
	elapsed := now.Sub(then)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}
