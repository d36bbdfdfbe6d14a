package counter

import "time"

// PeriodKind identifies one of the two rolling accounting windows.
type PeriodKind string

const (
	PeriodDaily   PeriodKind = "daily"
	PeriodMonthly PeriodKind = "monthly"
)

// Valid reports whether the kind is daily or monthly.
func (k PeriodKind) Valid() bool {
	return k == PeriodDaily || k == PeriodMonthly
}

// ParsePeriodKind validates a raw period kind string.
func ParsePeriodKind(s string) (PeriodKind, error) {
	k := PeriodKind(s)
	if !k.Valid() {
		return "", ErrUnknownPeriodKind
	}
	return k, nil
}

// PeriodStart returns the anchor of the period containing now, in UTC.
func PeriodStart(kind PeriodKind, now time.Time) time.Time {
	now = now.UTC()
	switch kind {
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// NextReset returns when the period containing now rolls over, in UTC.
func NextReset(kind PeriodKind, now time.Time) time.Time {
	start := PeriodStart(kind, now)
	if kind == PeriodMonthly {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}
