package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger writes audit records.
type Logger interface {
	// Record stores one audit entry for an administrative action.
	Record(ctx context.Context, action, actor, targetUserID string, opts ...RecordOption) error
}

// Reader queries stored audit records.
type Reader interface {
	Find(ctx context.Context, criteria Criteria) ([]Record, error)
}

type logger struct {
	storage Storage
	now     func() time.Time
}

// LoggerOption configures a Logger.
type LoggerOption func(*logger)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger on top of the given storage.
func NewLogger(storage Storage, opts ...LoggerOption) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &logger{
		storage: storage,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logger) Record(ctx context.Context, action, actor, targetUserID string, opts ...RecordOption) error {
	record := Record{
		ID:           uuid.New(),
		Action:       action,
		Actor:        actor,
		TargetUserID: targetUserID,
		CreatedAt:    l.now(),
	}
	for _, opt := range opts {
		opt(&record)
	}
	if err := record.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, record)
}

type reader struct {
	storage Storage
}

// NewReader creates a Reader on top of the given storage.
func NewReader(storage Storage) Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &reader{storage: storage}
}

func (r *reader) Find(ctx context.Context, criteria Criteria) ([]Record, error) {
	return r.storage.Query(ctx, criteria)
}
