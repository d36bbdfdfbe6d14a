package enforce

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

var (
	ErrInvalidCost      = errors.New("operation cost must be at least 1")
	ErrStoreUnavailable = errors.New("counter store unavailable")
)

// DeniedError is the expected, user-facing outcome of an exhausted quota.
// It is not retryable before ResetAt and must never be logged as a system
// error.
type DeniedError struct {
	Usage   quota.UsageView
	ResetAt time.Time
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("quota exhausted, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// AsDenied unwraps a DeniedError from err, if present.
func AsDenied(err error) (*DeniedError, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
