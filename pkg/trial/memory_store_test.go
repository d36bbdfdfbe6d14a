package trial_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/trial"
)

func activeEntry(userID uuid.UUID) trial.LedgerEntry {
	return trial.LedgerEntry{
		UserID:   userID,
		Tier:     quota.TierPro,
		StartsAt: evalNow,
		EndsAt:   evalNow.AddDate(0, 0, 14),
		Status:   trial.StatusActive,
		Source:   trial.SourceSelfServe,
	}
}

func TestMemoryLedgerStore_Append(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("assigns ids and returns a copy", func(t *testing.T) {
		t.Parallel()
		store := trial.NewMemoryLedgerStore()

		entry, err := store.Append(ctx, activeEntry(uuid.New()), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.ID)

		entry.Status = trial.StatusExpired
		stored, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, trial.StatusActive, stored.Status, "caller mutation must not leak into the store")
	})

	t.Run("refuses a second active entry per user", func(t *testing.T) {
		t.Parallel()
		store := trial.NewMemoryLedgerStore()
		userID := uuid.New()

		_, err := store.Append(ctx, activeEntry(userID), nil)
		require.NoError(t, err)

		_, err = store.Append(ctx, activeEntry(userID), nil)
		assert.ErrorIs(t, err, trial.ErrActiveTrialExists)

		// A different user is unaffected.
		_, err = store.Append(ctx, activeEntry(uuid.New()), nil)
		assert.NoError(t, err)
	})

	t.Run("within failure discards the entry", func(t *testing.T) {
		t.Parallel()
		store := trial.NewMemoryLedgerStore()
		userID := uuid.New()
		boom := errors.New("tier mutation failed")

		_, err := store.Append(ctx, activeEntry(userID), func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)

		history, err := store.ListByUser(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestMemoryLedgerStore_Transitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("mark expired is conditional", func(t *testing.T) {
		t.Parallel()
		store := trial.NewMemoryLedgerStore()
		entry, err := store.Append(ctx, activeEntry(uuid.New()), nil)
		require.NoError(t, err)

		transitioned, err := store.MarkExpired(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, transitioned)

		transitioned, err = store.MarkExpired(ctx, entry.ID)
		require.NoError(t, err)
		assert.False(t, transitioned, "repeat transition is a silent no-op")

		_, err = store.MarkExpired(ctx, 404)
		assert.ErrorIs(t, err, trial.ErrEntryNotFound)
	})

	t.Run("mark converted records tier and time", func(t *testing.T) {
		t.Parallel()
		store := trial.NewMemoryLedgerStore()
		entry, err := store.Append(ctx, activeEntry(uuid.New()), nil)
		require.NoError(t, err)

		at := evalNow.AddDate(0, 0, 7)
		require.NoError(t, store.MarkConverted(ctx, entry.ID, quota.TierTeam, at))

		stored, err := store.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, trial.StatusConverted, stored.Status)
		require.NotNil(t, stored.ConvertedAt)
		assert.Equal(t, at, *stored.ConvertedAt)
		require.NotNil(t, stored.ConvertedTo)
		assert.Equal(t, quota.TierTeam, *stored.ConvertedTo)

		assert.ErrorIs(t, store.MarkConverted(ctx, entry.ID, quota.TierTeam, at), trial.ErrInvalidState)
	})
}

func TestMemoryLedgerStore_ListByUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := trial.NewMemoryLedgerStore()
	userID := uuid.New()

	// Insert out of chronological order; reads must come back sorted.
	for _, daysAgo := range []int{100, 300, 200} {
		end := evalNow.AddDate(0, 0, -daysAgo)
		_, err := store.Append(ctx, trial.LedgerEntry{
			UserID:   userID,
			Tier:     quota.TierPro,
			StartsAt: end.AddDate(0, 0, -14),
			EndsAt:   end,
			Status:   trial.StatusExpired,
			Source:   trial.SourceSelfServe,
		}, nil)
		require.NoError(t, err)
	}

	history, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].StartsAt.Before(history[1].StartsAt))
	assert.True(t, history[1].StartsAt.Before(history[2].StartsAt))
}

func TestMemoryLedgerStore_LockUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := trial.NewMemoryLedgerStore()
	userID := uuid.New()

	// Two lockers for the same user must serialize; the critical sections
	// can never interleave.
	var inside int
	var maxInside int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := store.LockUser(ctx, userID)
			assert.NoError(t, err)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
}
