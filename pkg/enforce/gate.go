package enforce

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/counter"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Admitted bool `json:"admitted"`

	// Bypassed is true when the subject's role exempted it from
	// enforcement; counters were not touched.
	Bypassed bool `json:"bypassed"`

	// Usage is returned on both outcomes so callers can render a warning
	// banner even for admitted requests.
	Usage quota.UsageView `json:"usage"`
}

// Gate composes the counter store with the quota policy and the bypass
// rule.
type Gate struct {
	counters counter.Store
	policy   quota.SystemPolicy
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate creates an enforcement gate over the given counter store and
// policy snapshot.
func NewGate(counters counter.Store, policy quota.SystemPolicy, opts ...GateOption) *Gate {
	if counters == nil {
		panic("enforce: counter store cannot be nil")
	}
	g := &Gate{
		counters: counters,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit decides whether the subject may perform cost billable operations.
//
// Bypass roles are admitted without touching counters. For everyone else
// each unit of cost consumes one slot in the daily and one in the monthly
// counter; when either period refuses, every increment applied so far is
// rolled back so no partial admission survives, and the call reports
// Admitted=false with the current usage.
func (g *Gate) Admit(ctx context.Context, subject quota.Subject, cost int) (Decision, error) {
	if cost < 1 {
		return Decision{}, ErrInvalidCost
	}

	now := g.now()
	limits, _ := g.policy.LimitsFor(subject.Tier) // missing tier fails closed with zero limits

	if subject.Role.IsBypass() {
		usage, err := g.usage(ctx, subject, limits, now)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Admitted: true, Bypassed: true, Usage: usage}, nil
	}

	applied := 0
	rollback := func(dailyApplied bool) error {
		var errs []error
		if dailyApplied {
			errs = append(errs, g.counters.Decrement(ctx, subject.Key, counter.PeriodDaily))
		}
		for range applied {
			errs = append(errs,
				g.counters.Decrement(ctx, subject.Key, counter.PeriodDaily),
				g.counters.Decrement(ctx, subject.Key, counter.PeriodMonthly))
		}
		return errors.Join(errs...)
	}

	for range cost {
		daily, err := g.counters.Increment(ctx, subject.Key, counter.PeriodDaily, limits.Daily, now)
		if err != nil {
			return Decision{}, errors.Join(ErrStoreUnavailable, err, rollback(false))
		}
		if !daily.Allowed {
			if err := rollback(false); err != nil {
				return Decision{}, errors.Join(ErrStoreUnavailable, err)
			}
			return g.denied(ctx, subject, limits, now)
		}

		monthly, err := g.counters.Increment(ctx, subject.Key, counter.PeriodMonthly, limits.Monthly, now)
		if err != nil {
			return Decision{}, errors.Join(ErrStoreUnavailable, err, rollback(true))
		}
		if !monthly.Allowed {
			if err := rollback(true); err != nil {
				return Decision{}, errors.Join(ErrStoreUnavailable, err)
			}
			return g.denied(ctx, subject, limits, now)
		}

		applied++
	}

	usage, err := g.usage(ctx, subject, limits, now)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Admitted: true, Usage: usage}, nil
}

// Require is a convenience wrapper for call sites that prefer error flow:
// it returns a *DeniedError when the quota is exhausted.
func (g *Gate) Require(ctx context.Context, subject quota.Subject) (quota.UsageView, error) {
	decision, err := g.Admit(ctx, subject, 1)
	if err != nil {
		return quota.UsageView{}, err
	}
	if !decision.Admitted {
		return decision.Usage, &DeniedError{
			Usage:   decision.Usage,
			ResetAt: earliestReset(decision.Usage),
		}
	}
	return decision.Usage, nil
}

// Usage reads the current usage without consuming any slots.
func (g *Gate) Usage(ctx context.Context, subject quota.Subject) (quota.UsageView, error) {
	limits, _ := g.policy.LimitsFor(subject.Tier)
	return g.usage(ctx, subject, limits, g.now())
}

func (g *Gate) denied(ctx context.Context, subject quota.Subject, limits quota.TierLimits, now time.Time) (Decision, error) {
	usage, err := g.usage(ctx, subject, limits, now)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Admitted: false, Usage: usage}, nil
}

func (g *Gate) usage(ctx context.Context, subject quota.Subject, limits quota.TierLimits, now time.Time) (quota.UsageView, error) {
	daily, err := g.counters.Peek(ctx, subject.Key, counter.PeriodDaily, limits.Daily, now)
	if err != nil {
		return quota.UsageView{}, errors.Join(ErrStoreUnavailable, err)
	}
	monthly, err := g.counters.Peek(ctx, subject.Key, counter.PeriodMonthly, limits.Monthly, now)
	if err != nil {
		return quota.UsageView{}, errors.Join(ErrStoreUnavailable, err)
	}
	return quota.Evaluate(subject,
		quota.PeriodCount{Used: daily.Count, ResetAt: daily.ResetAt},
		quota.PeriodCount{Used: monthly.Count, ResetAt: monthly.ResetAt},
		g.policy), nil
}

// earliestReset picks the reset time of the first period to free up: the
// daily window when it is exhausted, the monthly one otherwise.
func earliestReset(usage quota.UsageView) time.Time {
	if usage.Daily.Remaining == 0 {
		return usage.Daily.ResetAt
	}
	return usage.Monthly.ResetAt
}
