package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Control-plane inventory metrics
	PlacementsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_placements_total",
			Help: "Current number of placements by provider, tier and status",
		},
		[]string{"provider", "tier", "status"},
	)

	SagasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_sagas_total",
			Help: "Current number of saga executions by state",
		},
		[]string{"state"},
	)

	ReplicationPairsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_replication_pairs_total",
			Help: "Current number of replication pairs by state",
		},
		[]string{"state"},
	)

	ProviderHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_provider_healthy",
			Help: "Operator-set provider health (1 = healthy, 0 = unhealthy)",
		},
		[]string{"provider"},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strata_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strata_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strata_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strata_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strata_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_scheduling_latency_seconds",
			Help:    "Time taken to produce a placement decision in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PlacementsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_placements_scheduled_total",
			Help: "Total number of placements scheduled",
		},
	)

	SchedulingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_scheduling_failures_total",
			Help: "Total number of scheduling failures",
		},
	)

	// Replication metrics
	FailoversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_failovers_total",
			Help: "Total number of pair failover attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Reconciler metrics
	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_reconciliation_cycles_total",
			Help: "Total number of background reconciliation cycles",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_reconciliation_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SagasExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_sagas_expired_total",
			Help: "Total number of sagas failed by the timeout sweep",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(PlacementsTotal)
	prometheus.MustRegister(SagasTotal)
	prometheus.MustRegister(ReplicationPairsTotal)
	prometheus.MustRegister(ProviderHealthy)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(PlacementsScheduled)
	prometheus.MustRegister(SchedulingFailures)
	prometheus.MustRegister(FailoversTotal)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(SagasExpiredTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
