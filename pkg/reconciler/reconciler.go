package reconciler

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/health"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/metrics"
	"github.com/cellgrid/strata/pkg/orchestration"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/replication"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

const (
	// DefaultInterval is the pause between reconciliation cycles.
	DefaultInterval = 10 * time.Second

	// DefaultProbePort is where EndpointProbe knocks when no port is set;
	// replication deployments front MySQL endpoints.
	DefaultProbePort = 3306
)

// LagProbe samples replication lag for one pair. ok=false means no sample
// this cycle (endpoint unreachable, telemetry missing) and leaves the pair's
// stored lag untouched.
type LagProbe interface {
	Lag(ctx context.Context, pair *types.ReplicationPair) (lagMS int64, ok bool)
}

// StoredLagProbe re-reports the pair's stored lag sample. It produces no new
// telemetry but keeps the threshold rule applied every cycle, which settles
// freshly created PENDING pairs into REPLICATING.
type StoredLagProbe struct{}

// Lag returns the stored sample.
func (StoredLagProbe) Lag(_ context.Context, pair *types.ReplicationPair) (int64, bool) {
	return pair.LagMS, true
}

// EndpointProbe gates the stored lag sample on the secondary replication
// endpoint accepting TCP connections. Verdicts are damped per pair, so one
// lost packet does not drop a sample; a persistently dark endpoint does.
type EndpointProbe struct {
	// Port to dial on the pair's target endpoint. Defaults to DefaultProbePort.
	Port int

	// Timeout caps each dial. Defaults to the health package default.
	Timeout time.Duration

	mu     sync.Mutex
	status map[string]*health.Status
}

// Lag dials the pair's secondary endpoint and reports the stored lag when
// the endpoint is reachable.
func (p *EndpointProbe) Lag(ctx context.Context, pair *types.ReplicationPair) (int64, bool) {
	endpoint := pair.Config.TargetEndpoint
	if endpoint == "" {
		return 0, false
	}

	port := p.Port
	if port == 0 {
		port = DefaultProbePort
	}
	cfg := health.DefaultConfig()
	if p.Timeout > 0 {
		cfg.Timeout = p.Timeout
	}

	addr := net.JoinHostPort(endpoint, strconv.Itoa(port))
	result := health.NewTCPChecker(addr).WithTimeout(cfg.Timeout).Check(ctx)

	status := p.statusFor(pair.ID)
	status.Update(result, cfg)
	return pair.LagMS, status.Healthy
}

func (p *EndpointProbe) statusFor(pairID string) *health.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == nil {
		p.status = make(map[string]*health.Status)
	}
	s, ok := p.status[pairID]
	if !ok {
		s = health.NewStatus()
		p.status[pairID] = s
	}
	return s
}

// Reconciler drifts stored state back to reality on a fixed cycle: stale
// sagas are expired and compensated, provisioning placements are promoted
// once their claims become ready, and replication pairs get a fresh lag
// verdict.
type Reconciler struct {
	store    storage.Store
	orch     *orchestration.Orchestrator
	pairs    *replication.Manager
	probe    LagProbe
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// Option tunes the reconciler.
type Option func(*Reconciler)

// WithInterval overrides the cycle interval.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		r.interval = d
	}
}

// WithLagProbe replaces the stored-lag probe, e.g. with an EndpointProbe or
// a telemetry-backed implementation.
func WithLagProbe(probe LagProbe) Option {
	return func(r *Reconciler) {
		r.probe = probe
	}
}

// New creates a reconciler over the store, the orchestrator (saga expiry and
// claim readiness) and the replication manager (lag bookkeeping).
func New(store storage.Store, orch *orchestration.Orchestrator, pairs *replication.Manager, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		orch:     orch,
		pairs:    pairs,
		probe:    StoredLagProbe{},
		interval: DefaultInterval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the reconciliation loop.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler. Safe to call once.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			return
		}
	}
}

// reconcile performs one cycle. Sweeps are independent: a failing sweep is
// logged and the others still run.
func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	if err := r.expireStaleSagas(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Saga sweep failed")
	}
	if err := r.advancePlacements(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Placement sweep failed")
	}
	if err := r.refreshPairLag(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Replication sweep failed")
	}
}

// expireStaleSagas fails and compensates PENDING and RUNNING sagas that have
// made no progress inside the saga_timeout_seconds budget.
func (r *Reconciler) expireStaleSagas(ctx context.Context) error {
	timeout := time.Duration(r.configInt(types.ConfigSagaTimeoutSeconds, orchestration.DefaultSagaTimeout)) * time.Second
	cutoff := time.Now().UTC().Add(-timeout)

	var stale []*types.SagaExecution
	for _, state := range []types.SagaState{types.SagaStatePending, types.SagaStateRunning} {
		sagas, err := r.store.ListSagasByState(state)
		if err != nil {
			return fmt.Errorf("list %s sagas: %w", state, err)
		}
		for _, saga := range sagas {
			if saga.UpdatedAt.Before(cutoff) {
				stale = append(stale, saga)
			}
		}
	}

	for _, saga := range stale {
		reason := fmt.Sprintf("no progress for %s, budget is %s",
			time.Since(saga.UpdatedAt).Round(time.Second), timeout)
		r.logger.Warn().
			Str("saga_id", saga.ID).
			Str("state", string(saga.State)).
			Time("updated_at", saga.UpdatedAt).
			Msg("Expiring stale saga")
		if err := r.orch.ExpireSaga(ctx, saga, reason); err != nil {
			r.logger.Error().Err(err).Str("saga_id", saga.ID).Msg("Saga expiry failed")
			continue
		}
		metrics.SagasExpiredTotal.Inc()
	}
	return nil
}

// advancePlacements promotes PROVISIONING placements to READY once the
// provisioner reports their claim ready. Placements whose claim never made
// it to a cluster stay put until the claim is re-applied.
func (r *Reconciler) advancePlacements(ctx context.Context) error {
	placements, err := r.store.ListPlacementsByStatus(types.PlacementProvisioning)
	if err != nil {
		return fmt.Errorf("list provisioning placements: %w", err)
	}

	for _, placement := range placements {
		def, ok := r.orch.Registry().Get(placement.Product)
		if !ok {
			continue
		}
		ref := provisioner.Ref{
			APIVersion: def.APIVersion,
			Kind:       def.Kind,
			Namespace:  placement.Namespace,
			Name:       placement.Name,
		}
		ready, err := r.orch.Provisioner().Ready(ctx, ref)
		if err != nil || !ready {
			continue
		}

		placement.Status = types.PlacementReady
		placement.UpdatedAt = time.Now().UTC()
		if err := r.store.UpdatePlacement(placement); err != nil {
			r.logger.Error().Err(err).Str("placement_id", placement.ID).Msg("Placement update failed")
			continue
		}
		r.logger.Info().
			Str("placement_id", placement.ID).
			Str("name", placement.Namespace+"/"+placement.Name).
			Msg("Placement became ready")
	}
	return nil
}

// refreshPairLag re-samples lag for every pair in a telemetry state and lets
// the replication manager apply the warning threshold.
func (r *Reconciler) refreshPairLag(ctx context.Context) error {
	states := []types.ReplicationState{
		types.ReplicationPending,
		types.ReplicationReplicating,
		types.ReplicationLagWarning,
	}
	for _, state := range states {
		rows, err := r.store.ListReplicationPairsByState(state)
		if err != nil {
			return fmt.Errorf("list %s pairs: %w", state, err)
		}
		for _, pair := range rows {
			lag, ok := r.probe.Lag(ctx, pair)
			if !ok {
				r.logger.Warn().
					Str("pair_id", pair.ID).
					Str("endpoint", pair.Config.TargetEndpoint).
					Msg("No lag sample for pair this cycle")
				continue
			}
			updated, err := r.pairs.UpdateLag(pair.ID, lag)
			if err != nil {
				r.logger.Error().Err(err).Str("pair_id", pair.ID).Msg("Lag update failed")
				continue
			}
			if updated.State != state {
				r.logger.Info().
					Str("pair_id", pair.ID).
					Str("from", string(state)).
					Str("to", string(updated.State)).
					Int64("lag_ms", lag).
					Msg("Pair state moved")
			}
		}
	}
	return nil
}

func (r *Reconciler) configInt(key string, fallback int) int {
	entry, err := r.store.GetConfig(key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(entry.Value)
	if err != nil {
		return fallback
	}
	return n
}
