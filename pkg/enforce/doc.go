// Package enforce is the per-request gate in front of every billable
// operation. It composes the quota policy with the role-based bypass rule
// and the counter store's atomic admission.
//
// Privileged roles (support, admin, super_admin) bypass enforcement
// entirely: their requests are admitted without touching counters, so the
// bypass path never leaks into normal accounting. Everyone else pays one
// slot in both the daily and the monthly counter; if either refuses, no
// partial increment is left applied.
//
// Basic usage:
//
//	gate := enforce.NewGate(store, policy)
//
//	decision, err := gate.Admit(ctx, subject, 1)
//	if err != nil {
//	    // storage failure
//	}
//	if !decision.Admitted {
//	    // quota exhausted; decision.Usage carries reset times
//	}
//
// Middleware adapts the gate to chi-style HTTP stacks.
package enforce
