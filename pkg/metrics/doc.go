/*
Package metrics provides Prometheus metrics collection and exposition for Strata.

The metrics package defines and registers all Strata metrics using the
Prometheus client library, providing observability into placement inventory,
saga progress, replication state, scheduling latency, and API traffic.
Metrics are exposed via the /metrics endpoint for scraping.

# Architecture

	┌──────────────────── METRICS SYSTEM ─────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                             │          │
	│  │  Inventory: placements, sagas, pairs        │          │
	│  │  Providers: operator health flags           │          │
	│  │  Raft: leader status, log index, peers      │          │
	│  │  API: request count, duration               │          │
	│  │  Scheduler: latency, decisions, failures    │          │
	│  │  Replication: failover outcomes             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

# Core Components

Collector polls the state store every 15 seconds and refreshes the inventory
gauges (placements by provider/tier/status, sagas by state, replication pairs
by state, provider health flags). Counter and histogram metrics are
incremented at the call sites that own the event: the API middleware records
request counts and durations, the create path records scheduling outcomes,
and the failover handler records attempt outcomes.

HealthChecker tracks per-component health for the /healthz and /ready
endpoints. Components register themselves at startup and update their status
as conditions change:

	metrics.RegisterComponent("store", true, "")
	metrics.UpdateComponent("traffic", false, "dns endpoint unreachable")

Readiness requires the critical components (store, scheduler, provisioner)
to be registered and healthy. Raft gates readiness only when HA mode has
registered it.

# Usage

Exposing metrics:

	mux.Handle("/metrics", metrics.Handler())

Recording a scheduling outcome:

	timer := metrics.NewTimer()
	decision, err := sched.Schedule(req)
	timer.ObserveDuration(metrics.SchedulingLatency)
	if err != nil {
		metrics.SchedulingFailures.Inc()
	} else {
		metrics.PlacementsScheduled.Inc()
	}

Starting the inventory collector:

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

# Metric Naming

All metrics carry the strata_ prefix. Gauges report current inventory and
are fully reset on each collection pass so label sets for deleted rows do
not linger. Counters are monotonic and survive for the process lifetime.
*/
package metrics
