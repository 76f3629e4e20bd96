/*
Package orchestration drives creation requests through a compensating saga.

Every create runs six steps in a fixed order with the record persisted
around each one, so an operator can always see exactly how far a request
got. A failed step triggers compensation of the completed steps in reverse,
landing the saga on ROLLED_BACK. Sticky placement, forced failover and
multi-cloud fan-out are entry points layered over the same step engine.

# Architecture

	┌────────────────────── SAGA LIFECYCLE ──────────────────────┐
	│                                                             │
	│  PENDING ──▶ RUNNING ──▶ COMPLETED (placement_id bound)     │
	│                   │                                         │
	│                   └──▶ FAILED ──▶ COMPENSATING ──▶ ROLLED_BACK
	│                         (when saga_enabled)                 │
	│                                                             │
	│  steps: validate → schedule → apply_claim → wait_ready      │
	│         → register → notify                                 │
	│                                                             │
	│  compensators (reverse order):                              │
	│    apply_claim → delete claim (only if applied)             │
	│    register    → placement status FAILED                    │
	│    others      → no-op                                      │
	└─────────────────────────────────────────────────────────────┘

# Core Components

Orchestrator:
  - CreateService: sticky lookup, then one saga per request
  - ForceFailover: bypasses stickiness, excludes providers, replaces the
    existing claim
  - DeployMulticloud: one concurrent saga per target provider with a
    provider-suffixed name
  - RetrySaga: resets a FAILED or ROLLED_BACK record to PENDING

Step semantics:
  - validate: common fields (go-playground/validator with a dns1123 rule)
    plus product parameter schemas; every violation is aggregated
  - schedule: placement decision; optional credential gate on the winner
    (a miss is a validation failure, never a breaker failure); breaker
    success recorded for the winner
  - apply_claim: claim built and applied through the provisioner; an
    unavailable provisioner advances in standalone mode (applied=false),
    any other error charges the winner's breaker and fails the step
  - wait_ready: bounded readiness polling; standalone passes immediately
  - register: placement row inserted, READY if applied else PROVISIONING
  - notify: structured log line plus event publish

# Usage

	orch := orchestration.New(store, sched, registry, prov, broker)

	result, err := orch.CreateService(ctx, "mysql", &types.CreateRequest{
		Name: "orders-db", Cell: "cell-a", Tier: "medium",
		Environment: "production",
		Parameters: map[string]interface{}{"size": "large", "storageGB": 100},
	})
	// result.Status: "created" (201), "exists" (200) or "failed" (422)

	result, err = orch.ForceFailover(ctx, "mysql", "default", "orders-db",
		[]string{"aws"})
	// result.Status: "failover_complete", result.PreviousProvider: "aws"

# Integration Points

  - pkg/scheduler: placement decisions and breaker accounting
  - pkg/products: parameter validation and claim construction
  - pkg/provisioner: apply, readiness, delete and the sticky lookup
  - pkg/storage: saga records, placements, config, credentials, audit
  - pkg/events: placement.created, placement.failed, saga.completed,
    saga.rolled_back

# Design Patterns

  - Saga with compensation: forward steps persist before and after running
    so a crash leaves an inspectable record, never a half-written one
  - Compensator errors are logged and swallowed: rollback must always
    terminate
  - Standalone mode: a missing provisioner degrades to building claims
    without applying them instead of failing creates

# Monitoring

Every step failure logs with saga_id, step and error. Saga outcomes land in
the audit log with action service.create, service.failover or
service.multicloud_deploy.

# See Also

  - pkg/scheduler - the decision pipeline behind the schedule step
  - pkg/replication - replication pairs created for DR tiers
  - pkg/api - HTTP status mapping for saga outcomes
*/
package orchestration
