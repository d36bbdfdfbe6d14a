package counter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/pkg/counter"
)

func TestPeriodStart(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 18, 30, 45, 0, time.UTC)

	assert.Equal(t,
		time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		counter.PeriodStart(counter.PeriodDaily, now))
	assert.Equal(t,
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		counter.PeriodStart(counter.PeriodMonthly, now))

	t.Run("non-utc input is anchored in utc", func(t *testing.T) {
		t.Parallel()

		// 23:30 in UTC+5 is 18:30 UTC the same day.
		local := time.Date(2025, 6, 15, 23, 30, 0, 0, time.FixedZone("UTC+5", 5*3600))
		assert.Equal(t,
			time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			counter.PeriodStart(counter.PeriodDaily, local))
	})
}

func TestNextReset(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)

	assert.Equal(t,
		time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		counter.NextReset(counter.PeriodDaily, now))
	assert.Equal(t,
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		counter.NextReset(counter.PeriodMonthly, now))

	t.Run("december rolls into january", func(t *testing.T) {
		t.Parallel()

		dec := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
		assert.Equal(t,
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			counter.NextReset(counter.PeriodMonthly, dec))
	})
}

func TestParsePeriodKind(t *testing.T) {
	t.Parallel()

	kind, err := counter.ParsePeriodKind("daily")
	assert.NoError(t, err)
	assert.Equal(t, counter.PeriodDaily, kind)

	_, err = counter.ParsePeriodKind("weekly")
	assert.ErrorIs(t, err, counter.ErrUnknownPeriodKind)
}
