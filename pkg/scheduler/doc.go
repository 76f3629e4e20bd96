/*
Package scheduler implements tier-driven placement across cloud providers.

The scheduler turns a schedule request (cell, tier, environment, ha, name)
into an immutable placement decision: the winning candidate, its weighted
score, a full reason record and, for DR tiers, a cross-cloud failover
target. Provider health flags and per-provider circuit breakers gate which
candidates are even considered.

# Architecture

	┌─────────────────── SCHEDULE PIPELINE ───────────────────┐
	│                                                           │
	│  request ──▶ tier resolution        (UnknownTier)        │
	│         ──▶ health filter           (NoHealthyCandidates)│
	│              operator flag AND candidate flag            │
	│              AND breaker.Allow()                          │
	│         ──▶ weight resolution                             │
	│              tier weights → experiment override           │
	│              → prefer_cost_optimization boost              │
	│         ──▶ gate + score            (NoGatePassers)       │
	│              gates = tier capabilities (+multi_az on HA)  │
	│              score = Σ weight[d] × scores[d]               │
	│         ──▶ rank (stable, descending)                     │
	│         ──▶ failover selection (low, business_critical)   │
	│         ──▶ analytics record                              │
	│                                                           │
	└───────────────────────────────────────────────────────────┘

# Core Components

Scheduler:
  - Stateless pipeline over an immutable policy model
  - Typed failures: UnknownTier, EmptyPool, NoHealthyCandidates,
    NoGatePassers (all map to HTTP 422)
  - RecordSuccess/RecordFailure feed the winner's breaker from the
    saga's apply step

HealthRegistry:
  - Operator health flag per provider (defaults healthy)
  - Runtime candidate overrides keyed by provider/region/cluster
  - Breaker table, created on first use

CircuitBreaker:
  - closed → open after 5 consecutive failures
  - open → half_open once the 60s cooldown elapses (applied on read)
  - any success closes and zeroes the counter

# Usage

	sched := scheduler.New(policy.Default(), scheduler.NewHealthRegistry(),
		experiment.NewRegistry(), experiment.NewAnalytics())

	decision, err := sched.Schedule(types.ScheduleRequest{
		Name: "orders-db", Cell: "cell-a", Tier: "medium",
		Environment: "production",
	})
	if err != nil {
		var schedErr *types.SchedulingError
		if errors.As(err, &schedErr) {
			// schedErr.Kind classifies the failure
		}
	}

	// After a successful provisioner apply:
	sched.RecordSuccess(decision.Provider)

# Integration Points

This package integrates with:

  - pkg/policy: tier and candidate pool definitions
  - pkg/experiment: weight overrides, flags, analytics
  - pkg/orchestration: the saga's schedule step calls Schedule and feeds
    breaker outcomes from apply_claim
  - pkg/api: provider health endpoints read HealthRegistry views

# Design Patterns

Typed Errors:
  - Every pipeline failure is a *types.SchedulingError with a Kind
  - Callers branch on Kind, not on message text

Stable Ranking:
  - sort.SliceStable keeps pool order for equal scores, so results are
    deterministic for a fixed pool and weight set

Read-Time Breaker Transition:
  - open → half_open happens inside Allow/State/Snapshot under the
    breaker lock, so a concurrent failure cannot race the probe

# See Also

  - pkg/policy for the tier/candidate data model
  - pkg/experiment for assignment and analytics
*/
package scheduler
