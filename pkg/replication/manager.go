package replication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/traffic"
	"github.com/cellgrid/strata/pkg/types"
)

// Manager owns the replication pair lifecycle: creating pairs for placements
// whose tier demands a standby, tracking lag telemetry, and running the
// five-phase failover.
type Manager struct {
	store   storage.Store
	model   *policy.Model
	traffic traffic.Provider
	prov    provisioner.Provisioner
	broker  *events.Broker
	logger  zerolog.Logger
}

// New creates a replication manager.
func New(store storage.Store, model *policy.Model, tp traffic.Provider, prov provisioner.Provisioner, broker *events.Broker) *Manager {
	return &Manager{
		store:   store,
		model:   model,
		traffic: tp,
		prov:    prov,
		broker:  broker,
		logger:  log.WithComponent("replication"),
	}
}

// EnsurePair creates the replication pair for a placement when its tier
// demands one. Low and business_critical tiers always pair; medium pairs on
// an HA request; critical never pairs. The call is idempotent: an existing
// pair for the same namespace/name is returned untouched.
func (m *Manager) EnsurePair(ctx context.Context, placement *types.Placement) (*types.ReplicationPair, error) {
	if !NeedsReplication(placement.Tier) {
		return nil, nil
	}
	if !PairRequired(placement.Tier) && !placement.HA {
		return nil, nil
	}

	existing, err := m.store.GetReplicationPairByName(placement.Namespace, placement.Name)
	if err == nil {
		return existing, nil
	}
	var nf *types.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}

	drPolicy := m.policyFor(placement.Tier)
	secondary, err := m.chooseSecondary(placement)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pair := &types.ReplicationPair{
		ID:        uuid.New().String(),
		Cell:      placement.Cell,
		Namespace: placement.Namespace,
		Name:      placement.Name,
		Product:   placement.Product,
		Tier:      placement.Tier,
		Primary: types.ReplicationSide{
			Provider:       placement.Provider,
			Region:         placement.Region,
			RuntimeCluster: placement.RuntimeCluster,
			PlacementID:    placement.ID,
		},
		Secondary:        secondary,
		State:            types.ReplicationPending,
		RPOTargetMinutes: drPolicy.RPOTargetMinutes,
		RTOTargetMinutes: drPolicy.RTOTargetMinutes,
		FailoverPhase:    types.PhaseIdle,
		DRStrategy:       drPolicy.Strategy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	pair.Config = BuildConfig(pair)
	pair.DeploymentName = pair.Config.DeploymentName

	m.applyDeployment(ctx, pair)

	if err := m.store.CreateReplicationPair(pair); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("pair_id", pair.ID).
		Str("name", pair.Namespace+"/"+pair.Name).
		Str("strategy", pair.DRStrategy).
		Str("primary", pair.Primary.Provider+"/"+pair.Primary.Region).
		Str("secondary", pair.Secondary.Provider+"/"+pair.Secondary.Region).
		Msg("Replication pair created")

	m.publish(events.EventPairCreated, pair, "Replication pair created")
	return pair, nil
}

// UpdateLag records a lag sample and applies the warning threshold: lag
// above 80% of the RPO budget flips REPLICATING to LAG_WARNING and back.
// States outside normal telemetry (failover, suspension, errors) keep their
// state and only record the sample.
func (m *Manager) UpdateLag(id string, lagMS int64) (*types.ReplicationPair, error) {
	pair, err := m.store.GetReplicationPair(id)
	if err != nil {
		return nil, err
	}

	pair.LagMS = lagMS
	switch pair.State {
	case types.ReplicationPending, types.ReplicationReplicating, types.ReplicationLagWarning:
		rpoMS := int64(pair.RPOTargetMinutes) * 60_000
		if float64(lagMS) > 0.8*float64(rpoMS) {
			pair.State = types.ReplicationLagWarning
		} else {
			pair.State = types.ReplicationReplicating
		}
	}
	pair.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateReplicationPair(pair); err != nil {
		return nil, err
	}
	return pair, nil
}

// Pair returns one replication pair by id.
func (m *Manager) Pair(id string) (*types.ReplicationPair, error) {
	return m.store.GetReplicationPair(id)
}

// Pairs returns all replication pairs.
func (m *Manager) Pairs() ([]*types.ReplicationPair, error) {
	return m.store.ListReplicationPairs()
}

// policyFor loads the tier's DR policy row, falling back to the compiled-in
// defaults when no row exists.
func (m *Manager) policyFor(tierName string) *types.DRPolicy {
	if row, err := m.store.GetDRPolicy(tierName); err == nil {
		return row
	}
	if tier, ok := m.model.Tier(tierName); ok {
		return DefaultPolicy(tier)
	}
	d := resolveDefault(tierName)
	return &types.DRPolicy{Tier: tierName, Strategy: d.strategy, AutoFailover: d.autoFailover}
}

// chooseSecondary picks where the standby lives. The scheduler already
// records a cross-provider standby with low and business_critical decisions,
// so that choice wins; otherwise the best tier-gated candidate on another
// provider is selected from the policy model.
func (m *Manager) chooseSecondary(placement *types.Placement) (types.ReplicationSide, error) {
	if fo := placement.Failover; fo != nil && fo.Provider != placement.Provider {
		return types.ReplicationSide{
			Provider:       fo.Provider,
			Region:         fo.Region,
			RuntimeCluster: fo.RuntimeCluster,
		}, nil
	}

	tier, ok := m.model.Tier(placement.Tier)
	if !ok {
		return types.ReplicationSide{}, types.NewSchedulingError(types.UnknownTier,
			"unknown tier '%s'", placement.Tier)
	}

	gates := tier.Capabilities
	if placement.HA && !hasCapability(gates, types.CapabilityMultiAZ) {
		gates = append(append([]types.Capability(nil), gates...), types.CapabilityMultiAZ)
	}

	var best *types.Candidate
	var bestScore float64
	for _, c := range m.model.Candidates() {
		if c.Provider == placement.Provider || !c.Healthy {
			continue
		}
		if !satisfiesGates(c, gates) {
			continue
		}
		score := tier.Weights.Score(c.Scores)
		if best == nil || score > bestScore || (score == bestScore && c.Key() < best.Key()) {
			best = c
			bestScore = score
		}
	}
	if best == nil {
		return types.ReplicationSide{}, types.NewSchedulingError(types.EmptyPool,
			"no cross-provider standby available for tier '%s' off %s", placement.Tier, placement.Provider)
	}
	return types.ReplicationSide{
		Provider:       best.Provider,
		Region:         best.Region,
		RuntimeCluster: best.RuntimeCluster,
	}, nil
}

// applyDeployment hands the replication deployment claim to the provisioner.
// Standalone mode and apply failures leave the pair record authoritative;
// the claim can be re-applied later from the stored config.
func (m *Manager) applyDeployment(ctx context.Context, pair *types.ReplicationPair) {
	if m.prov == nil {
		return
	}
	claim := DeploymentClaim(pair, pair.Config)
	if err := m.prov.Apply(ctx, claim); err != nil {
		if errors.Is(err, provisioner.ErrUnavailable) {
			m.logger.Warn().Str("pair_id", pair.ID).
				Msg("Replication deployment not applied, provisioner unavailable")
			return
		}
		m.logger.Warn().Err(err).Str("pair_id", pair.ID).
			Msg("Replication deployment apply failed")
	}
}

func (m *Manager) publish(eventType events.EventType, pair *types.ReplicationPair, message string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Message: message,
		Metadata: map[string]string{
			"pair_id":   pair.ID,
			"name":      pair.Name,
			"namespace": pair.Namespace,
			"tier":      pair.Tier,
			"strategy":  pair.DRStrategy,
		},
	})
}

func hasCapability(caps []types.Capability, want types.Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}

func satisfiesGates(c *types.Candidate, gates []types.Capability) bool {
	for _, g := range gates {
		if !c.HasCapability(g) {
			return false
		}
	}
	return true
}
