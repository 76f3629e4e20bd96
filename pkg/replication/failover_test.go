package replication

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/traffic"
	"github.com/cellgrid/strata/pkg/types"
)

func nextEvent(t *testing.T, sub events.Subscriber) *events.Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestFailoverCompletesAndSwapsSides(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	sub := tm.broker.Subscribe()
	defer tm.broker.Unsubscribe(sub)

	pair, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)
	_, err = tm.UpdateLag(pair.ID, 1_000)
	require.NoError(t, err)

	res, err := tm.Failover(ctx, pair.ID)
	require.NoError(t, err)

	assert.Equal(t, FailoverCompleted, res.Status)
	assert.Equal(t, []string{
		"FREEZE_WRITES", "VERIFY_LAG", "PROMOTE_SECONDARY", "UPDATE_DNS", "SCALE_COMPUTE",
	}, res.StepsCompleted)
	assert.Empty(t, res.Errors)
	assert.Equal(t, Endpoint{Provider: "aws", Region: "us-east-1"}, res.PreviousPrimary)
	assert.Equal(t, Endpoint{Provider: "gcp", Region: "us-central1"}, res.NewPrimary)
	assert.Equal(t, types.PhaseCompleted, res.FailoverPhase)
	assert.Equal(t, types.StrategyWarmStandby, res.DRStrategy)

	stored, err := tm.store.GetReplicationPair(pair.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ReplicationFailedOver, stored.State)
	assert.Equal(t, types.PhaseCompleted, stored.FailoverPhase)
	assert.Equal(t, "gcp", stored.Primary.Provider)
	assert.Equal(t, "gcp-usc1-prod-01", stored.Primary.RuntimeCluster)
	assert.Equal(t, "aws", stored.Secondary.Provider)
	// The swap moves whole sides, placement linkage included.
	assert.Equal(t, "pl-orders-db", stored.Secondary.PlacementID)

	state, err := tm.traffic.Status(ctx, RecordHost(stored))
	require.NoError(t, err)
	assert.Equal(t, traffic.ActiveSecondary, state.Active)

	created := nextEvent(t, sub)
	assert.Equal(t, events.EventPairCreated, created.Type)
	completed := nextEvent(t, sub)
	assert.Equal(t, events.EventPairFailoverCompleted, completed.Type)
	assert.Equal(t, pair.ID, completed.Metadata["pair_id"])
}

func TestFailoverAbortsOnExcessiveLag(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	sub := tm.broker.Subscribe()
	defer tm.broker.Unsubscribe(sub)

	pair, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)

	// RPO 5min = 300000ms; this lag can never drain in time.
	_, err = tm.UpdateLag(pair.ID, 350_000)
	require.NoError(t, err)

	res, err := tm.Failover(ctx, pair.ID)
	require.NoError(t, err)

	assert.Equal(t, FailoverAborted, res.Status)
	assert.Equal(t, []string{"FREEZE_WRITES"}, res.StepsCompleted)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "VERIFY_LAG", res.Errors[0].Step)
	assert.Contains(t, res.Errors[0].Error, "exceeds RPO")
	assert.Equal(t, types.PhaseAborted, res.FailoverPhase)

	// Nothing moved: both result endpoints still name the current primary.
	assert.Equal(t, res.NewPrimary, res.PreviousPrimary)
	assert.Equal(t, "aws", res.NewPrimary.Provider)

	stored, err := tm.store.GetReplicationPair(pair.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ReplicationError, stored.State)
	assert.Equal(t, types.PhaseAborted, stored.FailoverPhase)
	assert.Equal(t, "aws", stored.Primary.Provider)
	assert.Equal(t, "gcp", stored.Secondary.Provider)

	created := nextEvent(t, sub)
	assert.Equal(t, events.EventPairCreated, created.Type)
	aborted := nextEvent(t, sub)
	assert.Equal(t, events.EventPairFailoverAborted, aborted.Type)
}

func TestFailoverConflictWhenInProgress(t *testing.T) {
	tm := newTestManager(t, policy.Default())
	ctx := context.Background()

	pair, err := tm.EnsurePair(ctx, lowPlacement("orders-db"))
	require.NoError(t, err)

	pair.State = types.ReplicationFailoverInProgress
	require.NoError(t, tm.store.UpdateReplicationPair(pair))

	_, err = tm.Failover(ctx, pair.ID)
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestFailoverMissingPair(t *testing.T) {
	tm := newTestManager(t, policy.Default())

	_, err := tm.Failover(context.Background(), "nope")
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
}
