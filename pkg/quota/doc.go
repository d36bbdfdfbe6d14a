// Package quota converts raw period counters into allow/deny decisions for
// billable operations.
//
// The package is deliberately split into an immutable SystemPolicy snapshot
// (per-tier limits, warning threshold, lifetime trial cap) and a pure
// Evaluate function, so that every decision is reproducible in tests without
// touching storage or the environment.
//
// Key concepts:
//
//   - Subject: the entity (user or anonymous caller) quotas apply to
//   - Tier: gates numeric limits (free, starter, pro, team)
//   - Role: gates enforcement bypass (user, support, admin, super_admin)
//   - SystemPolicy: process-wide limits loaded once at startup
//   - UsageView: the rendered decision for both accounting periods
//
// Basic usage:
//
//	policy := quota.DefaultSystemPolicy()
//
//	view := quota.Evaluate(subject,
//	    quota.PeriodCount{Used: 8, ResetAt: dailyReset},
//	    quota.PeriodCount{Used: 42, ResetAt: monthlyReset},
//	    policy)
//
//	if !view.CanProceed {
//	    // quota exhausted for at least one period
//	}
//	if view.WarningLevel == quota.WarnSoft {
//	    // render "approaching limit" banner
//	}
//
// Policies can be loaded from a YAML file via NewFileSource or supplied
// directly with NewInMemSource.
package quota
