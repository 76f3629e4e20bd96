/*
Package types defines the core data structures shared across Strata components.

This package contains the domain model for the control plane: tiers and
candidates (the policy vocabulary), scheduling decisions and their reason
records, saga executions, placement records, replication pairs, provider
definitions, credentials, audit entries, and the typed error kinds the HTTP
layer maps to status codes.

# Type Categories

Policy model:

  - Tier - criticality class with RTO/RPO, required capabilities, weights
  - Candidate - (provider, region, runtime cluster) placement target
  - Capability - named feature a tier can require (pitr, multi_az, ...)
  - Weights - dimension→weight mapping, must sum to 1.0 ± 0.01

Scheduling:

  - ScheduleRequest / CreateRequest - inbound request shapes
  - Decision - chosen candidate + reason + optional failover
  - Reason - the auditable decision record (wire-contract field names)
  - Scorecard, UnhealthySkip, ExperimentInfo, FailoverDecision
  - BreakerState / BreakerSnapshot - circuit breaker visibility

Lifecycle:

  - SagaExecution - six-step saga record (PENDING → ... → COMPLETED)
  - Placement - persisted placement with PROVISIONING/READY/FAILED status
  - ReplicationPair - primary/secondary pair with failover state machine
  - DRPolicy - per-tier disaster recovery policy

Operations:

  - ProviderDefinition, ProviderHealth, ProviderCredentials
  - Experiment - A/B weight override with deterministic assignment
  - AuditEntry, ConfigEntry
  - Claim - unstructured declarative resource document

# State Machines

Saga states:

	PENDING → RUNNING → COMPLETED
	                  ↘ FAILED → COMPENSATING → ROLLED_BACK

Replication pair states:

	PENDING → PROVISIONING_SECONDARY → CONFIGURING → REPLICATING ⇄ LAG_WARNING
	REPLICATING → FAILOVER_IN_PROGRESS → FAILED_OVER (success, sides swapped)
	                                   ↘ ERROR (phase ABORTED, no swap)

# Error Taxonomy

Typed errors map 1:1 to HTTP response classes:

	ValidationError   → 400
	NotFoundError     → 404
	ConflictError     → 409
	SchedulingError   → 422
	SagaError         → 422 (with saga detail)

All types use JSON tags matching the persisted and wire representations; the
Reason field names in particular are consumed by external tooling and must
not change.
*/
package types
