// Package reconciler closes the gap between stored control-plane state and
// reality. The API handlers and the saga executor write what they know at
// request time; anything that resolves later, or that a crashed node left
// behind, is this package's problem.
//
// A cycle runs three independent sweeps on a fixed interval:
//
//   - Stale sagas. A PENDING or RUNNING saga that has not moved inside the
//     saga_timeout_seconds budget is failed and compensated through the
//     orchestrator, exactly as if its step had returned an error. This is
//     what cleans up after a node that died mid-saga.
//
//   - Provisioning placements. A placement registered before its claim was
//     applied sits in PROVISIONING. Once the provisioner reports the claim
//     ready the placement is promoted to READY.
//
//   - Replication lag. Every pair in a telemetry state (PENDING,
//     REPLICATING, LAG_WARNING) gets a lag sample from the configured
//     LagProbe, and the replication manager re-applies the warning
//     threshold. Pairs mid-failover or suspended are left alone.
//
// # Lag probes
//
// The default StoredLagProbe re-reports whatever lag the pair already
// carries; it adds no telemetry but keeps the threshold rule live and moves
// fresh pairs out of PENDING. EndpointProbe additionally requires the
// secondary's replication endpoint to accept TCP connections, with per-pair
// flap damping so a single missed dial does not drop the sample. Real
// telemetry systems implement LagProbe and push measured values.
//
// Sweep failures are logged and never stop the loop; each cycle times out
// after one interval so a hung provisioner cannot stall reconciliation.
package reconciler
