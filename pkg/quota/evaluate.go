package quota

import (
	"math"
	"time"
)

// WarningLevel indicates how close a subject is to exhausting a period.
type WarningLevel string

const (
	WarnNone WarningLevel = "none"
	WarnSoft WarningLevel = "soft"
	WarnHard WarningLevel = "hard"
)

// PeriodCount is the raw counter input to Evaluate: how many operations a
// subject has used in one period and when that period resets.
type PeriodCount struct {
	Used    int64
	ResetAt time.Time
}

// PeriodUsage is the rendered usage for one accounting period.
type PeriodUsage struct {
	Used       int64     `json:"used"`
	Limit      int64     `json:"limit"`
	Remaining  int64     `json:"remaining"`
	Percentage int       `json:"percentage"`
	ResetAt    time.Time `json:"reset_at"`
}

// UsageView is the full quota decision for a subject across both periods.
type UsageView struct {
	Daily   PeriodUsage `json:"daily"`
	Monthly PeriodUsage `json:"monthly"`
	Tier    Tier        `json:"tier"`

	// CanProceed is true only when both periods have remaining capacity.
	// Exhausting either period blocks the subject.
	CanProceed bool `json:"can_proceed"`

	// WarningLevel is hard once any period reaches 100%, soft once any
	// period reaches the configured threshold, none otherwise.
	WarningLevel WarningLevel `json:"warning_level"`
}

// Evaluate renders the quota decision for a subject from its raw counters
// and the system policy. It is a pure function: same inputs, same output.
//
// A tier without configured limits is treated as fully exhausted rather
// than unlimited, so a policy gap fails closed.
func Evaluate(subject Subject, daily, monthly PeriodCount, policy SystemPolicy) UsageView {
	limits, err := policy.LimitsFor(subject.Tier)
	if err != nil {
		limits = TierLimits{}
	}

	view := UsageView{
		Daily:   periodUsage(daily, limits.Daily),
		Monthly: periodUsage(monthly, limits.Monthly),
		Tier:    subject.Tier,
	}

	view.CanProceed = view.Daily.Remaining > 0 && view.Monthly.Remaining > 0
	view.WarningLevel = warningLevel(policy.WarnThresholdPercent, view.Daily.Percentage, view.Monthly.Percentage)
	return view
}

func periodUsage(count PeriodCount, limit int64) PeriodUsage {
	return PeriodUsage{
		Used:       count.Used,
		Limit:      limit,
		Remaining:  max(0, limit-count.Used),
		Percentage: Percentage(count.Used, limit),
		ResetAt:    count.ResetAt,
	}
}

// Percentage returns round(100*used/limit), or 0 when limit is zero so a
// misconfigured tier never causes a division fault.
func Percentage(used, limit int64) int {
	if limit == 0 {
		return 0
	}
	return int(math.Round(float64(used) * 100 / float64(limit)))
}

func warningLevel(threshold int, percentages ...int) WarningLevel {
	level := WarnNone
	for _, pct := range percentages {
		if pct >= 100 {
			return WarnHard
		}
		if pct >= threshold {
			level = WarnSoft
		}
	}
	return level
}
