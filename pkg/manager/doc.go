/*
Package manager owns a control node's stateful machinery: the backing
store, the optional Raft layer that replicates it, cluster membership,
join tokens and first-boot seeding.

# Store selection

New opens the store named by the configuration: BoltDB inside the data
directory for single-binary deployments, Postgres when an external
database is available. Everything downstream programs against
storage.Store and never learns which backend is live.

# HA mode

With Raft enabled, three or more control nodes replicate the store. Every
mutation is serialized into a Command, committed through the Raft log and
applied by each node's FSM against its local store, so the stores converge
without a shared database. Reads stay local and never pay a quorum
round-trip.

Store() hands out the right handle for the mode: the replicated wrapper
when Raft is live, the local store otherwise. Writes on a follower fail
with an error naming the leader; clients retry against the leader's API.

Timeouts are tightened from the library defaults (500ms heartbeat and
election, 250ms leader lease) because the nodes share a LAN and failover
has to finish well inside the ten-second budget the platform advertises.

# Membership

The first node calls Bootstrap and becomes the single-member cluster.
Additional nodes call Join with a token minted on the leader via
GenerateJoinToken; the leader validates the token and adds the node as a
voter. Tokens live in leader memory only and expire after 24 hours.

# Seeding

Seed runs once the node is ready (and, in HA mode, only on the leader): it
writes the runtime config defaults, one provider row per pool provider
with a conventional credentials reference, a healthy provider-health row
each, the per-tier DR policies and, when auth is enabled, the admin API
token. Rows that already exist are left alone, so operator edits survive
restarts.

# Integration Points

cmd/strata builds one Manager per process and wires its Store(), Broker()
and Box() into the scheduler, orchestrator and API. The cluster API routes
join, membership and stats calls through the manager. MetricsCollector
feeds the strata_raft_* gauges and the raft component health row.
*/
package manager
