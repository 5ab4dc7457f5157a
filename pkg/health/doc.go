// Package health aggregates health and readiness verdicts for a node.
//
// Health contributors are evaluated one at a time in ascending priority
// order. A critical contributor reporting StatusUnhealthy ends the pass
// immediately with an Unhealthy verdict; any other non-healthy result only
// degrades the verdict. Readiness contributors are always evaluated in full,
// and only required contributors can block the aggregate.
//
// The Aggregator does not drive stage changes on its own. A monitor (see
// package monitor) calls CheckHealth periodically and feeds the verdict into
// TransitionToStage.
//
// Usage:
//
//	agg, err := health.NewAggregator(register,
//	    health.WithContributors(db, cache),
//	    health.WithReadinessContributors(warmup),
//	)
//	status, details := agg.CheckHealth(ctx)
package health
