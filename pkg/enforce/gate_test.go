package enforce_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/counter"
	"github.com/dmitrymomot/quotakit/pkg/enforce"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

var gateNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func gatePolicy() quota.SystemPolicy {
	return quota.SystemPolicy{
		Limits: map[quota.Tier]quota.TierLimits{
			quota.TierFree: {Daily: 3, Monthly: 10},
			quota.TierPro:  {Daily: 10, Monthly: 4},
		},
		WarnThresholdPercent:     80,
		MaxTrialsPerUserLifetime: 3,
	}
}

func newGate(t *testing.T) (*enforce.Gate, *counter.MemoryStore) {
	t.Helper()
	store := counter.NewMemoryStore()
	gate := enforce.NewGate(store, gatePolicy(),
		enforce.WithClock(func() time.Time { return gateNow }))
	return gate, store
}

func count(t *testing.T, store counter.Store, key string, kind counter.PeriodKind) int64 {
	t.Helper()
	snap, err := store.Peek(context.Background(), key, kind, 1000, gateNow)
	require.NoError(t, err)
	return snap.Count
}

func TestGateAdmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	user := quota.Subject{Key: "u1", Tier: quota.TierFree, Role: quota.RoleUser}

	t.Run("admits and consumes one slot per period", func(t *testing.T) {
		t.Parallel()
		gate, store := newGate(t)

		decision, err := gate.Admit(ctx, user, 1)
		require.NoError(t, err)
		assert.True(t, decision.Admitted)
		assert.False(t, decision.Bypassed)
		assert.Equal(t, int64(1), decision.Usage.Daily.Used)
		assert.Equal(t, int64(1), decision.Usage.Monthly.Used)

		assert.Equal(t, int64(1), count(t, store, "u1", counter.PeriodDaily))
		assert.Equal(t, int64(1), count(t, store, "u1", counter.PeriodMonthly))
	})

	t.Run("denies once the daily limit is reached", func(t *testing.T) {
		t.Parallel()
		gate, store := newGate(t)

		for range 3 {
			decision, err := gate.Admit(ctx, user, 1)
			require.NoError(t, err)
			require.True(t, decision.Admitted)
		}

		decision, err := gate.Admit(ctx, user, 1)
		require.NoError(t, err)
		assert.False(t, decision.Admitted)
		assert.Equal(t, quota.WarnHard, decision.Usage.WarningLevel)

		// The refused attempt must not leak into either period.
		assert.Equal(t, int64(3), count(t, store, "u1", counter.PeriodDaily))
		assert.Equal(t, int64(3), count(t, store, "u1", counter.PeriodMonthly))
	})

	t.Run("monthly refusal rolls back the daily increment", func(t *testing.T) {
		t.Parallel()
		gate, store := newGate(t)
		pro := quota.Subject{Key: "p1", Tier: quota.TierPro, Role: quota.RoleUser}

		for range 4 {
			decision, err := gate.Admit(ctx, pro, 1)
			require.NoError(t, err)
			require.True(t, decision.Admitted)
		}

		decision, err := gate.Admit(ctx, pro, 1)
		require.NoError(t, err)
		assert.False(t, decision.Admitted)
		assert.Equal(t, int64(4), count(t, store, "p1", counter.PeriodDaily),
			"partial admission must not survive a monthly refusal")
		assert.Equal(t, int64(4), count(t, store, "p1", counter.PeriodMonthly))
	})

	t.Run("batch cost is all or nothing", func(t *testing.T) {
		t.Parallel()
		gate, store := newGate(t)

		// Daily limit is 3; a batch of 5 must leave no residue.
		decision, err := gate.Admit(ctx, user, 5)
		require.NoError(t, err)
		assert.False(t, decision.Admitted)
		assert.Zero(t, count(t, store, "u1", counter.PeriodDaily))
		assert.Zero(t, count(t, store, "u1", counter.PeriodMonthly))

		decision, err = gate.Admit(ctx, user, 3)
		require.NoError(t, err)
		assert.True(t, decision.Admitted)
		assert.Equal(t, int64(3), decision.Usage.Daily.Used)
	})

	t.Run("rejects non-positive cost", func(t *testing.T) {
		t.Parallel()
		gate, _ := newGate(t)

		_, err := gate.Admit(ctx, user, 0)
		assert.ErrorIs(t, err, enforce.ErrInvalidCost)
	})

	t.Run("unconfigured tier is denied, not unlimited", func(t *testing.T) {
		t.Parallel()
		gate, _ := newGate(t)
		ghost := quota.Subject{Key: "g1", Tier: quota.TierTeam, Role: quota.RoleUser}

		decision, err := gate.Admit(ctx, ghost, 1)
		require.NoError(t, err)
		assert.False(t, decision.Admitted)
	})
}

func TestGateBypass(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, role := range []quota.Role{quota.RoleSupport, quota.RoleAdmin, quota.RoleSuperAdmin} {
		t.Run(string(role), func(t *testing.T) {
			t.Parallel()
			gate, store := newGate(t)
			subject := quota.Subject{Key: "staff", Tier: quota.TierFree, Role: role}

			for range 10 {
				decision, err := gate.Admit(ctx, subject, 1)
				require.NoError(t, err)
				assert.True(t, decision.Admitted)
				assert.True(t, decision.Bypassed)
			}

			// Even past any limit, nothing was consumed.
			assert.Zero(t, count(t, store, "staff", counter.PeriodDaily))
			assert.Zero(t, count(t, store, "staff", counter.PeriodMonthly))
		})
	}
}

func TestGateRequire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate, _ := newGate(t)
	user := quota.Subject{Key: "u1", Tier: quota.TierFree, Role: quota.RoleUser}

	for range 3 {
		_, err := gate.Require(ctx, user)
		require.NoError(t, err)
	}

	_, err := gate.Require(ctx, user)
	denied, ok := enforce.AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), denied.ResetAt,
		"exhausted daily window resets at the next UTC midnight")
}

func TestGateUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate, store := newGate(t)
	user := quota.Subject{Key: "u1", Tier: quota.TierFree, Role: quota.RoleUser}

	usage, err := gate.Usage(ctx, user)
	require.NoError(t, err)
	assert.True(t, usage.CanProceed)
	assert.Zero(t, usage.Daily.Used)

	// Reading usage repeatedly consumes nothing.
	_, err = gate.Usage(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count(t, store, "u1", counter.PeriodDaily))
}
