package config

import "errors"

var (
	// ErrNilPointer indicates a nil target was passed to Load.
	ErrNilPointer = errors.New("config target cannot be nil")

	// ErrParsingConfig indicates environment parsing failed.
	ErrParsingConfig = errors.New("failed to parse configuration from environment")
)
