package enforce_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/counter"
	"github.com/dmitrymomot/quotakit/pkg/enforce"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// brokenStore fails every operation, simulating an unreachable backend.
type brokenStore struct{}

func (brokenStore) Peek(ctx context.Context, key string, kind counter.PeriodKind, limit int64, now time.Time) (counter.Snapshot, error) {
	return counter.Snapshot{}, errors.New("connection refused")
}

func (brokenStore) Increment(ctx context.Context, key string, kind counter.PeriodKind, limit int64, now time.Time) (counter.IncrementResult, error) {
	return counter.IncrementResult{}, errors.New("connection refused")
}

func (brokenStore) Decrement(ctx context.Context, key string, kind counter.PeriodKind) error {
	return errors.New("connection refused")
}

func subjectFromHeader(r *http.Request) (quota.Subject, bool) {
	key := r.Header.Get("X-Subject-Key")
	if key == "" {
		return quota.Subject{}, false
	}
	return quota.Subject{Key: key, Tier: quota.TierFree, Role: quota.RoleUser}, true
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("admits and sets usage headers", func(t *testing.T) {
		t.Parallel()
		gate, _ := newGate(t)
		handler := enforce.Middleware(gate, subjectFromHeader)(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.Header.Set("X-Subject-Key", "u1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-Quota-Daily-Limit"))
		assert.Equal(t, "2", rec.Header().Get("X-Quota-Daily-Remaining"))
		assert.Equal(t, "none", rec.Header().Get("X-Quota-Warning"))
	})

	t.Run("answers 429 with retry hint when exhausted", func(t *testing.T) {
		t.Parallel()
		gate, _ := newGate(t)
		handler := enforce.Middleware(gate, subjectFromHeader)(okHandler)

		for range 3 {
			req := httptest.NewRequest(http.MethodPost, "/generate", nil)
			req.Header.Set("X-Subject-Key", "u1")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.Header.Set("X-Subject-Key", "u1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-Quota-Daily-Remaining"))
	})

	t.Run("skips enforcement when no subject resolves", func(t *testing.T) {
		t.Parallel()
		gate, store := newGate(t)
		handler := enforce.Middleware(gate, subjectFromHeader)(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Quota-Daily-Limit"))
		assert.Zero(t, count(t, store, "", counter.PeriodDaily))
	})

	t.Run("fails closed on store errors", func(t *testing.T) {
		t.Parallel()
		gate := enforce.NewGate(brokenStore{}, gatePolicy())
		handler := enforce.Middleware(gate, subjectFromHeader)(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.Header.Set("X-Subject-Key", "u1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
