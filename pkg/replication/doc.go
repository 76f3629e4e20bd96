/*
Package replication manages cross-cloud DR pairs and their failover.

A replication pair ties a placement (the primary) to a standby on a
different provider (the secondary), with a CDC stream between them and
RPO/RTO targets taken from the tier's DR policy. One replication deployment
per pair isolates blast radius and allows per-cell tuning.

# Pair lifecycle

Pairs are created behind successful sagas when the tier demands one:

	low               warm_standby   pair always
	medium            pilot_light    pair when the request asks for HA
	critical          backup_restore never
	business_critical active_active  pair always, auto failover

The secondary defaults to the scheduler's recorded cross-provider standby;
when the decision carries none, the best tier-gated candidate on another
provider is chosen from the policy model. The deployment layout (extract,
replicat, trail, endpoints, lag alerting at half the RPO budget) is derived
deterministically from the pair row, so it can always be rebuilt from the
store.

Lag telemetry arrives through UpdateLag. A sample above 80% of the RPO
budget flips REPLICATING to LAG_WARNING; draining below flips it back.

# Failover

Failover runs five phases in order:

	FREEZE_WRITES      write fence on the primary
	VERIFY_LAG         refuse when lag exceeds the RPO budget
	PROMOTE_SECONDARY  standby becomes the writer
	UPDATE_DNS         traffic provider switches the client-facing record
	SCALE_COMPUTE      pilot-light standbys grow to full capacity

Success lands the pair in FAILED_OVER with its sides swapped in one store
write. A failed phase aborts: phase ABORTED, state ERROR, no swap, and the
result reports the completed steps plus the per-step errors. A pair already
mid-failover rejects a second attempt with a conflict.

# Integration Points

The orchestrator calls EnsurePair after each successful saga. The API
serves pair reads, lag updates, and failover under /api/v1/replication. The
reconciler refreshes lag and re-applies the threshold rule. Pair
transitions publish pair.created, pair.failover.completed and
pair.failover.aborted events.
*/
package replication
