package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable.
	ErrStorageNotAvailable = errors.New("audit storage backend is unavailable")

	// ErrRecordValidation indicates record validation failed.
	ErrRecordValidation = errors.New("audit record validation failed")

	// ErrRecordNotFound indicates no record matched the query.
	ErrRecordNotFound = errors.New("audit record not found")
)
