package audit

import (
	"context"
	"time"
)

// Criteria filters audit record queries. Zero-valued fields are ignored.
type Criteria struct {
	Actor        string
	TargetUserID string
	Action       string
	ForcedOnly   bool
	Since        time.Time
	Until        time.Time
	Limit        int
}

// Storage persists audit records. Implementations must treat records as
// append-only: Store never updates an existing record.
type Storage interface {
	Store(ctx context.Context, record Record) error
	Query(ctx context.Context, criteria Criteria) ([]Record, error)
}
