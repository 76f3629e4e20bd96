/*
Package api implements the Strata HTTP API server.

The api package is the external surface of the control plane. Developers
create and inspect service instances through it; operators manage providers,
policies, experiments, credentials and replication pairs. The server is a
chi router with JSON request/response bodies throughout.

# Architecture

The server composes the control-plane collaborators and stays thin: handlers
decode, delegate, and encode. Placement decisions live in the scheduler,
lifecycle in the orchestrator, durable state in the store.

	┌────────────────────── CLIENT (developer/operator) ─────────────┐
	│              HTTP + JSON (port 8080 by default)                 │
	└───────────────────────────────┬─────────────────────────────────┘
	                                │
	┌───────────────────────────────▼─────────── API SERVER ─────────┐
	│  chi router                                                     │
	│    middleware: request id, real ip, logging, recover, CORS      │
	│    admin subtree: optional bearer token                         │
	│                                                                 │
	│  orchestrator ── saga lifecycle, sticky placement, failover     │
	│  scheduler ───── weighted scoring, gates, breakers, experiments │
	│  store ──────── placements, sagas, config, audit                │
	│  replication ── DR pairs, five-phase pair failover              │
	│  credentials ── sealed provider secrets                         │
	└─────────────────────────────────────────────────────────────────┘

# Route Groups

Developer surface (/api/v1):

  - GET  /products - product catalog
  - POST /services/{product} - create an instance (201, or 200 sticky)
  - POST /services/{product}/multicloud - fan out to several providers
  - GET  /services/{product}/{namespace}/{name} - claim status
  - POST /services/{product}/{namespace}/{name}/failover - force reschedule
  - POST /databases, /apps - aliases for the mysql and webapp products

Scheduling operations (/api/v1):

  - GET/PUT provider health, circuit breaker state
  - GET  /analytics - placement analytics snapshot
  - CRUD /experiments, /flags

Replication (/api/v1/replication):

  - GET  /pairs, /pairs/{id}
  - POST /pairs/{id}/failover - five-phase controlled failover
  - PUT  /pairs/{id}/lag - replication lag report

Admin (/api/v1/admin, bearer token when configured):

  - /config, /providers, /dr-policies - platform configuration
  - /sagas, /placements, /audit-log - execution history
  - /credentials - sealed provider credentials, masked reads

# Error Mapping

Handlers translate the typed error taxonomy to HTTP statuses:

	ValidationError   → 400
	NotFoundError     → 404
	ConflictError     → 409
	SchedulingError   → 422
	SagaError         → 422
	ErrUnavailable    → 502

Every error body is {"error": message}, with optional details.

# Developer Contract

Creation bodies must not carry provider, region, runtimeCluster,
runtime_cluster or network: those are placement outputs, not inputs.
Requests that include them are rejected with 400 before validation.

Usage:

	server := api.NewServer(orch, sched, store, pairs, creds, broker,
		api.WithAdminToken(token))
	go server.Start(":8080")
	...
	server.Shutdown(ctx)
*/
package api
