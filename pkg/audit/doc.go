// Package audit records administrative actions that bypass normal policy,
// most importantly forced trial grants.
//
// Records are append-only: they are written once and never updated or
// deleted. Each record captures who acted, on whom, what changed, the
// free-text justification, and whether the action was forced past an
// eligibility failure.
//
// Basic usage:
//
//	logger := audit.NewLogger(audit.NewMemoryStorage())
//
//	err := logger.Record(ctx, "trial.force_grant", actorID, targetID,
//	    audit.WithChange("free", "pro"),
//	    audit.WithJustification("customer escalation #4211, approved by CS lead"),
//	    audit.WithForced("MAX_TRIALS_REACHED"),
//	    audit.WithMetadata("prior_trial_count", 3),
//	)
//
// A Reader queries stored records for the admin console.
package audit
