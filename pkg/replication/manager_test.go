package replication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/traffic"
	"github.com/cellgrid/strata/pkg/types"
)

type testManager struct {
	*Manager
	store   storage.Store
	prov    *provisioner.Memory
	traffic *traffic.OCIDNS
	broker  *events.Broker
}

func newTestManager(t *testing.T, model *policy.Model) *testManager {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	tp := traffic.NewOCIDNS()

	return &testManager{
		Manager: New(store, model, tp, prov, broker),
		store:   store,
		prov:    prov,
		traffic: tp,
		broker:  broker,
	}
}

func lowPlacement(name string) *types.Placement {
	return &types.Placement{
		ID:             "pl-" + name,
		Product:        "mysql",
		Name:           name,
		Namespace:      "default",
		Cell:           "cell-a",
		Tier:           "low",
		Environment:    "production",
		Provider:       "aws",
		Region:         "us-east-1",
		RuntimeCluster: "aws-use1-prod-01",
		Failover: &types.FailoverDecision{
			Provider:       "gcp",
			Region:         "us-central1",
			RuntimeCluster: "gcp-usc1-prod-01",
		},
	}
}

func TestEnsurePairUsesSchedulerStandby(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	pair, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, "aws", pair.Primary.Provider)
	assert.Equal(t, "pl-orders-db", pair.Primary.PlacementID)
	assert.Equal(t, "gcp", pair.Secondary.Provider)
	assert.Equal(t, "us-central1", pair.Secondary.Region)
	assert.Equal(t, types.ReplicationPending, pair.State)
	assert.Equal(t, types.PhaseIdle, pair.FailoverPhase)
	assert.Equal(t, types.StrategyWarmStandby, pair.DRStrategy)
	assert.Equal(t, 5, pair.RPOTargetMinutes)
	assert.Equal(t, 30, pair.RTOTargetMinutes)
	assert.Equal(t, "gg-cell-a-orders-db", pair.DeploymentName)
	require.NotNil(t, pair.Config)

	// The replication deployment claim went to the provisioner.
	assert.Equal(t, 1, tm.prov.Claims())

	stored, err := tm.store.GetReplicationPairByName("default", "orders-db")
	require.NoError(t, err)
	assert.Equal(t, pair.ID, stored.ID)
}

func TestEnsurePairIsIdempotent(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	first, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)

	second, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	pairs, err := tm.store.ListReplicationPairs()
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}

func TestEnsurePairSkipsTiersWithoutMandate(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	medium := lowPlacement("api-db")
	medium.Tier = "medium"
	medium.Failover = nil
	pair, err := tm.EnsurePair(ctx, medium)
	require.NoError(t, err)
	assert.Nil(t, pair)

	critical := lowPlacement("batch-db")
	critical.Tier = "critical"
	critical.HA = true
	pair, err = tm.EnsurePair(ctx, critical)
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestEnsurePairMediumTierOnHARequest(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	placement := lowPlacement("api-db")
	placement.Tier = "medium"
	placement.HA = true
	placement.Failover = nil

	pair, err := tm.EnsurePair(ctx, placement)
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, types.StrategyPilotLight, pair.DRStrategy)
	assert.Equal(t, 15, pair.RPOTargetMinutes)
	// Best tier-gated candidate off aws: gcp/us-central1.
	assert.Equal(t, "gcp", pair.Secondary.Provider)
	assert.Equal(t, "us-central1", pair.Secondary.Region)
}

func TestEnsurePairNoCrossProviderCandidate(t *testing.T) {
	model, err := policy.Parse([]byte(`
candidates:
  - provider: aws
    region: us-east-1
    runtime_cluster: aws-use1-prod-01
    capabilities: [pitr, multi_az, private_networking, cross_region_replication]
    scores: {latency: 0.9, dr: 0.95, maturity: 0.95, cost: 0.5}
`))
	require.NoError(t, err)

	tm := newTestManager(t, model)

	placement := lowPlacement("orders-db")
	placement.Failover = nil

	_, err = tm.EnsurePair(context.Background(), placement)
	var serr *types.SchedulingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.EmptyPool, serr.Kind)
}

func TestEnsurePairStandaloneProvisioner(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	tm.prov.SetUnavailable(true)

	pair, err := tm.EnsurePair(context.Background(), lowPlacement("orders-db"))
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, 0, tm.prov.Claims())
}

func TestUpdateLagAppliesWarningThreshold(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	pair, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)

	// RPO 5min = 300000ms; warning above 240000ms.
	updated, err := tm.UpdateLag(pair.ID, 250_000)
	require.NoError(t, err)
	assert.Equal(t, types.ReplicationLagWarning, updated.State)
	assert.True(t, updated.LagWithinRPO())

	updated, err = tm.UpdateLag(pair.ID, 200_000)
	require.NoError(t, err)
	assert.Equal(t, types.ReplicationReplicating, updated.State)

	// Idempotent: replaying the sample keeps the state.
	updated, err = tm.UpdateLag(pair.ID, 200_000)
	require.NoError(t, err)
	assert.Equal(t, types.ReplicationReplicating, updated.State)
	assert.Equal(t, int64(200_000), updated.LagMS)
}

func TestUpdateLagKeepsNonTelemetryStates(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	pair, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)

	pair.State = types.ReplicationSuspended
	require.NoError(t, tm.store.UpdateReplicationPair(pair))

	updated, err := tm.UpdateLag(pair.ID, 999_999)
	require.NoError(t, err)
	assert.Equal(t, types.ReplicationSuspended, updated.State)
	assert.Equal(t, int64(999_999), updated.LagMS)
}

func TestUpdateLagMissingPair(t *testing.T) {
	tm := newTestManager(t, policy.Default())

	_, err := tm.UpdateLag("nope", 100)
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
}
