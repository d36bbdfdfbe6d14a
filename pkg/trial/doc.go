// Package trial manages promotional trials of higher service tiers: the
// append-only ledger of every trial ever granted, the pure eligibility
// evaluator, and the grant service that ties them together.
//
// Eligibility is a deterministic function over the user's full trial
// history, the target program's policy and the system-wide lifetime cap,
// so it can be tested exhaustively against constructed histories. Grants
// are serialized per user at the store boundary, which is what upholds the
// "at most one active trial" invariant under concurrent requests.
//
// Administrators may force a grant past a failed eligibility check. A
// forced grant requires a longer justification and always produces an
// audit record naming the overridden reason.
//
// Trial lifecycle:
//
//	active -> expired    (time passage, via the idempotent sweep)
//	active -> converted  (explicit conversion event)
//
// No other transition is legal.
package trial
