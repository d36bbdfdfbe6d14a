package quota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func testPolicy() quota.SystemPolicy {
	return quota.SystemPolicy{
		Limits: map[quota.Tier]quota.TierLimits{
			quota.TierFree: {Daily: 10, Monthly: 100},
			quota.TierPro:  {Daily: 100, Monthly: 1500},
		},
		WarnThresholdPercent:     80,
		MaxTrialsPerUserLifetime: 3,
	}
}

func TestPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		used  int64
		limit int64
		want  int
	}{
		{"rounds up past half", 3, 7, 43},
		{"rounds to nearest", 7, 9, 78},
		{"zero limit yields zero", 5, 0, 0},
		{"exact boundary", 8, 10, 80},
		{"full", 10, 10, 100},
		{"over limit", 12, 10, 120},
		{"unused", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, quota.Percentage(tt.used, tt.limit))
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	dailyReset := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	monthlyReset := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	subject := quota.Subject{Key: "u1", Tier: quota.TierFree, Role: quota.RoleUser}

	t.Run("renders both periods", func(t *testing.T) {
		t.Parallel()

		view := quota.Evaluate(subject,
			quota.PeriodCount{Used: 3, ResetAt: dailyReset},
			quota.PeriodCount{Used: 40, ResetAt: monthlyReset},
			testPolicy())

		assert.Equal(t, quota.TierFree, view.Tier)
		assert.Equal(t, int64(3), view.Daily.Used)
		assert.Equal(t, int64(10), view.Daily.Limit)
		assert.Equal(t, int64(7), view.Daily.Remaining)
		assert.Equal(t, 30, view.Daily.Percentage)
		assert.Equal(t, dailyReset, view.Daily.ResetAt)
		assert.Equal(t, int64(60), view.Monthly.Remaining)
		assert.True(t, view.CanProceed)
		assert.Equal(t, quota.WarnNone, view.WarningLevel)
	})

	t.Run("soft warning at threshold", func(t *testing.T) {
		t.Parallel()

		view := quota.Evaluate(subject,
			quota.PeriodCount{Used: 8, ResetAt: dailyReset},
			quota.PeriodCount{Used: 10, ResetAt: monthlyReset},
			testPolicy())

		assert.Equal(t, quota.WarnSoft, view.WarningLevel)
		assert.True(t, view.CanProceed)
	})

	t.Run("hard warning at exhaustion", func(t *testing.T) {
		t.Parallel()

		view := quota.Evaluate(subject,
			quota.PeriodCount{Used: 10, ResetAt: dailyReset},
			quota.PeriodCount{Used: 10, ResetAt: monthlyReset},
			testPolicy())

		assert.Equal(t, quota.WarnHard, view.WarningLevel)
		assert.False(t, view.CanProceed)
		assert.Zero(t, view.Daily.Remaining)
	})

	t.Run("monthly exhaustion blocks even with daily headroom", func(t *testing.T) {
		t.Parallel()

		view := quota.Evaluate(subject,
			quota.PeriodCount{Used: 1, ResetAt: dailyReset},
			quota.PeriodCount{Used: 100, ResetAt: monthlyReset},
			testPolicy())

		assert.False(t, view.CanProceed)
		assert.Equal(t, quota.WarnHard, view.WarningLevel)
	})

	t.Run("warning considers both periods", func(t *testing.T) {
		t.Parallel()

		view := quota.Evaluate(subject,
			quota.PeriodCount{Used: 1, ResetAt: dailyReset},
			quota.PeriodCount{Used: 85, ResetAt: monthlyReset},
			testPolicy())

		assert.Equal(t, quota.WarnSoft, view.WarningLevel)
	})

	t.Run("unconfigured tier fails closed", func(t *testing.T) {
		t.Parallel()

		missing := quota.Subject{Key: "u2", Tier: quota.TierTeam, Role: quota.RoleUser}
		view := quota.Evaluate(missing,
			quota.PeriodCount{Used: 0, ResetAt: dailyReset},
			quota.PeriodCount{Used: 0, ResetAt: monthlyReset},
			testPolicy())

		assert.False(t, view.CanProceed)
		assert.Zero(t, view.Daily.Limit)
		assert.Zero(t, view.Daily.Percentage, "zero limit must not report usage percent")
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()

		daily := quota.PeriodCount{Used: 4, ResetAt: dailyReset}
		monthly := quota.PeriodCount{Used: 44, ResetAt: monthlyReset}

		first := quota.Evaluate(subject, daily, monthly, testPolicy())
		second := quota.Evaluate(subject, daily, monthly, testPolicy())
		require.Equal(t, first, second)
	})
}
