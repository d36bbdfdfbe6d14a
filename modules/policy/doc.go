// Package policy exposes the quota and trial engine over HTTP for its
// external callers: the billing/generation service, the admin console and
// the anonymous-usage tracker.
//
// Authentication is out of scope here; the module trusts subject headers
// set by the upstream gateway (X-Subject-Key, X-Subject-Tier,
// X-Subject-Role, X-Actor) and a custom SubjectResolver can replace that
// scheme entirely.
//
// Mounting:
//
//	mod := policy.NewModule(gate, trials,
//	    policy.WithHealthcheck("postgres", pg.Healthcheck(pool)),
//	    policy.WithHealthcheck("redis", redis.Healthcheck(client)),
//	)
//
//	r := chi.NewRouter()
//	r.Mount("/policy", mod.Router())
package policy
