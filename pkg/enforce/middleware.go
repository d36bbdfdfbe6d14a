package enforce

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// SubjectFunc resolves the quota subject from an incoming request.
// Returning ok=false skips enforcement for that request (e.g. routes that
// are not billable).
type SubjectFunc func(r *http.Request) (subject quota.Subject, ok bool)

// Middleware wraps billable routes with the enforcement gate. Admission
// headers are always set; an exhausted quota answers 429 with the reset
// time, and a counter store failure answers 500 - enforcement never fails
// open for non-bypass subjects.
func Middleware(gate *Gate, subjectFunc SubjectFunc) func(http.Handler) http.Handler {
	if gate == nil {
		panic("enforce.Middleware: gate is required")
	}
	if subjectFunc == nil {
		panic("enforce.Middleware: subjectFunc is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := subjectFunc(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := gate.Admit(r.Context(), subject, 1)
			if err != nil {
				http.Error(w, "quota check unavailable", http.StatusInternalServerError)
				return
			}

			setUsageHeaders(w, decision)

			if !decision.Admitted {
				retryAfter := int64(time.Until(earliestReset(decision.Usage)).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				http.Error(w, "quota exhausted", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setUsageHeaders(w http.ResponseWriter, decision Decision) {
	w.Header().Set("X-Quota-Daily-Limit", strconv.FormatInt(decision.Usage.Daily.Limit, 10))
	w.Header().Set("X-Quota-Daily-Remaining", strconv.FormatInt(decision.Usage.Daily.Remaining, 10))
	w.Header().Set("X-Quota-Monthly-Limit", strconv.FormatInt(decision.Usage.Monthly.Limit, 10))
	w.Header().Set("X-Quota-Monthly-Remaining", strconv.FormatInt(decision.Usage.Monthly.Remaining, 10))
	w.Header().Set("X-Quota-Warning", string(decision.Usage.WarningLevel))
}
