/*
Package storage provides durable state persistence for Strata's control plane.

The storage package defines the Store interface and two implementations: an
embedded BoltDB store for single-node and Raft-replicated deployments, and a
PostgreSQL store for teams that run the control plane against a managed
database. All rows are serialized as JSON documents; each call is atomic, so
readers never observe a partially written row.

# Architecture

	┌──────────────────────── STORE ─────────────────────────┐
	│                                                          │
	│  ┌───────────────────────────────────────────┐          │
	│  │             Store interface                │          │
	│  │  config / providers / provider_health      │          │
	│  │  credentials / placements / sagas          │          │
	│  │  experiments / feature_flags               │          │
	│  │  replication_pairs / dr_policies / audit   │          │
	│  └──────────┬──────────────────────┬─────────┘          │
	│             │                      │                     │
	│  ┌──────────▼─────────┐  ┌─────────▼──────────┐         │
	│  │     BoltStore       │  │   PostgresStore    │         │
	│  │  <dataDir>/strata.db│  │  sqlx over pgx     │         │
	│  │  bucket per entity  │  │  JSONB + indexes   │         │
	│  │  B+tree, MVCC       │  │  goose migrations  │         │
	│  └────────────────────┘  └────────────────────┘         │
	└──────────────────────────────────────────────────────────┘

# Core Components

Store:
  - Interface consumed by orchestration, scheduler state, replication,
    reconciler, manager FSM and the API layer
  - Upsert semantics: Create and Update write the same way
  - Missing rows return *types.NotFoundError so the API can map to 404

BoltStore:
  - Single database file per control-plane node
  - One bucket per entity; audit bucket uses NextSequence keys so cursor
    order matches append order
  - List filters (by status, state, cell, product) scan and filter in
    memory; pools are small by design

PostgresStore:
  - JSONB document column plus duplicated index columns
    (namespace/name, product, status, cell, state)
  - Embedded goose migrations applied on connect and by `strata migrate`
  - Audit sequence comes from BIGSERIAL, returned into the entry

# Usage

Creating a store:

	store, err := storage.NewBoltStore("/var/lib/strata")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

Placement operations:

	placement := &types.Placement{
		ID:        uuid.New().String(),
		Product:   "mysql",
		Name:      "orders-db",
		Namespace: "default",
		Provider:  "aws",
		Status:    types.PlacementProvisioning,
	}
	err := store.CreatePlacement(placement)

	existing, err := store.GetPlacementByName("default", "orders-db")
	provisioning, err := store.ListPlacementsByStatus(types.PlacementProvisioning)

Audit log:

	err := store.AppendAudit(&types.AuditEntry{
		Actor:   "api",
		Action:  "create_service",
		Name:    "orders-db",
		Outcome: "created",
	})
	latest, err := store.ListAudit(50)

# Integration Points

This package integrates with:

  - pkg/manager: Raft FSM applies every mutation through the Store
  - pkg/orchestration: saga persistence per step boundary
  - pkg/replication: pair rows and DR policy rows
  - pkg/scheduler: provider health and experiment state at boot
  - pkg/api: read paths and the audit trail

# Design Patterns

Upsert Pattern:
  - Create and Update share one write path
  - Atomic replacement, no separate exists check

Typed Not-Found:
  - Absent rows return *types.NotFoundError, never a nil row
  - API layer maps the type to HTTP 404

Filter Pattern:
  - List all, filter in memory for Bolt; index columns for Postgres
  - Entity counts stay small (hundreds, not millions)

# Performance Characteristics

BoltStore reads are O(log n) key lookups under 1ms; list scans cost about
1ms per thousand rows. Writes pay one fsync, typically 1-5ms. PostgresStore
latencies depend on the database; every list filter is backed by a btree
index on the duplicated column.

# See Also

  - pkg/manager for Raft FSM integration
  - pkg/types for entity definitions
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
