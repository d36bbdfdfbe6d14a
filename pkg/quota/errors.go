package quota

import "errors"

var (
	ErrUnknownTier = errors.New("unknown service tier")
	ErrUnknownRole = errors.New("unknown subject role")

	ErrInvalidPolicy        = errors.New("invalid system policy configuration")
	ErrFailedToLoadPolicy   = errors.New("failed to load system policy")
	ErrPolicyFileNotFound   = errors.New("system policy file not found")
	ErrTierLimitsNotDefined = errors.New("no limits defined for tier")
)
