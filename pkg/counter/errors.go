package counter

import "errors"

var (
	ErrUnknownPeriodKind = errors.New("unknown period kind")
	ErrNegativeLimit     = errors.New("counter limit cannot be negative")
	ErrStoreUnavailable  = errors.New("counter store unavailable")
)
