package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is a single append-only audit log entry.
type Record struct {
	ID            uuid.UUID      `json:"id"`
	Action        string         `json:"action"`
	Actor         string         `json:"actor"`
	TargetUserID  string         `json:"target_user_id"`
	OldValue      string         `json:"old_value,omitempty"`
	NewValue      string         `json:"new_value,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Forced        bool           `json:"forced"`
	// OverriddenReason holds the eligibility reason code an administrator
	// forced past; empty for non-forced actions.
	OverriddenReason string         `json:"overridden_reason,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Validate checks the record has the fields every entry must carry.
func (r *Record) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("%w: action is required", ErrRecordValidation)
	}
	if r.Actor == "" {
		return fmt.Errorf("%w: actor is required", ErrRecordValidation)
	}
	if r.Forced && r.OverriddenReason == "" {
		return fmt.Errorf("%w: forced record requires overridden reason", ErrRecordValidation)
	}
	return nil
}

// RecordOption applies configuration to a Record during creation.
type RecordOption func(*Record)

// WithChange sets the old/new value pair the action transitioned.
func WithChange(oldValue, newValue string) RecordOption {
	return func(r *Record) {
		r.OldValue = oldValue
		r.NewValue = newValue
	}
}

// WithJustification attaches the actor's free-text justification.
func WithJustification(justification string) RecordOption {
	return func(r *Record) {
		r.Justification = justification
	}
}

// WithForced marks the record as a forced override of the given
// eligibility reason code.
func WithForced(overriddenReason string) RecordOption {
	return func(r *Record) {
		r.Forced = true
		r.OverriddenReason = overriddenReason
	}
}

// WithMetadata adds one structured metadata entry.
func WithMetadata(key string, value any) RecordOption {
	return func(r *Record) {
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata[key] = value
	}
}
