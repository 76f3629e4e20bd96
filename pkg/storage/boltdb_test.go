package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetConfig(types.ConfigSagaEnabled, "true"))

	entry, err := store.GetConfig(types.ConfigSagaEnabled)
	require.NoError(t, err)
	assert.Equal(t, "true", entry.Value)
	assert.False(t, entry.UpdatedAt.IsZero())

	// Upsert overwrites
	require.NoError(t, store.SetConfig(types.ConfigSagaEnabled, "false"))
	entry, err = store.GetConfig(types.ConfigSagaEnabled)
	require.NoError(t, err)
	assert.Equal(t, "false", entry.Value)

	entries, err := store.ListConfig()
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.DeleteConfig(types.ConfigSagaEnabled))
	_, err = store.GetConfig(types.ConfigSagaEnabled)
	var notFound *types.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestPlacementCRUD(t *testing.T) {
	store := newTestStore(t)

	placement := &types.Placement{
		ID:        "p-1",
		Product:   "mysql",
		Name:      "orders-db",
		Namespace: "default",
		Cell:      "cell-a",
		Tier:      "medium",
		Provider:  "aws",
		Region:    "us-east-1",
		Status:    types.PlacementProvisioning,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreatePlacement(placement))

	got, err := store.GetPlacement("p-1")
	require.NoError(t, err)
	assert.Equal(t, "orders-db", got.Name)
	assert.Equal(t, "aws", got.Provider)

	byName, err := store.GetPlacementByName("default", "orders-db")
	require.NoError(t, err)
	assert.Equal(t, "p-1", byName.ID)

	_, err = store.GetPlacementByName("default", "missing")
	var notFound *types.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "placement", notFound.Resource)

	placement.Status = types.PlacementReady
	require.NoError(t, store.UpdatePlacement(placement))

	ready, err := store.ListPlacementsByStatus(types.PlacementReady)
	require.NoError(t, err)
	assert.Len(t, ready, 1)

	provisioning, err := store.ListPlacementsByStatus(types.PlacementProvisioning)
	require.NoError(t, err)
	assert.Empty(t, provisioning)

	byProduct, err := store.ListPlacementsByProduct("mysql")
	require.NoError(t, err)
	assert.Len(t, byProduct, 1)

	require.NoError(t, store.DeletePlacement("p-1"))
	_, err = store.GetPlacement("p-1")
	assert.Error(t, err)
}

func TestSagaStateIndex(t *testing.T) {
	store := newTestStore(t)

	for i, state := range []types.SagaState{
		types.SagaStateRunning,
		types.SagaStateCompleted,
		types.SagaStateRunning,
	} {
		saga := &types.SagaExecution{
			ID:    string(rune('a' + i)),
			State: state,
		}
		require.NoError(t, store.CreateSaga(saga))
	}

	running, err := store.ListSagasByState(types.SagaStateRunning)
	require.NoError(t, err)
	assert.Len(t, running, 2)

	completed, err := store.ListSagasByState(types.SagaStateCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestReplicationPairIndexes(t *testing.T) {
	store := newTestStore(t)

	pair := &types.ReplicationPair{
		ID:        "rp-1",
		Cell:      "cell-a",
		Namespace: "default",
		Name:      "orders-db",
		State:     types.ReplicationReplicating,
	}
	require.NoError(t, store.CreateReplicationPair(pair))

	other := &types.ReplicationPair{
		ID:        "rp-2",
		Cell:      "cell-b",
		Namespace: "default",
		Name:      "billing-db",
		State:     types.ReplicationPending,
	}
	require.NoError(t, store.CreateReplicationPair(other))

	byName, err := store.GetReplicationPairByName("default", "orders-db")
	require.NoError(t, err)
	assert.Equal(t, "rp-1", byName.ID)

	byCell, err := store.ListReplicationPairsByCell("cell-a")
	require.NoError(t, err)
	assert.Len(t, byCell, 1)

	byState, err := store.ListReplicationPairsByState(types.ReplicationPending)
	require.NoError(t, err)
	assert.Len(t, byState, 1)
	assert.Equal(t, "rp-2", byState[0].ID)
}

func TestFlags(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetFlag("prefer_cost_optimization", true))

	enabled, err := store.GetFlag("prefer_cost_optimization")
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = store.GetFlag("missing")
	var notFound *types.NotFoundError
	assert.True(t, errors.As(err, &notFound))

	flags, err := store.ListFlags()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"prefer_cost_optimization": true}, flags)
}

func TestAuditOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	for _, action := range []string{"first", "second", "third"} {
		require.NoError(t, store.AppendAudit(&types.AuditEntry{
			Timestamp: time.Now().UTC(),
			Actor:     "api",
			Action:    action,
			Outcome:   "ok",
		}))
	}

	entries, err := store.ListAudit(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first
	assert.Equal(t, "third", entries[0].Action)
	assert.Equal(t, "first", entries[2].Action)
	assert.Greater(t, entries[0].Seq, entries[2].Seq)

	limited, err := store.ListAudit(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "third", limited[0].Action)
}

func TestDRPolicies(t *testing.T) {
	store := newTestStore(t)

	policy := &types.DRPolicy{
		Tier:             "business_critical",
		Strategy:         types.StrategyActiveActive,
		AutoFailover:     true,
		RTOTargetMinutes: 15,
		RPOTargetMinutes: 1,
	}
	require.NoError(t, store.SetDRPolicy(policy))

	got, err := store.GetDRPolicy("business_critical")
	require.NoError(t, err)
	assert.Equal(t, types.StrategyActiveActive, got.Strategy)
	assert.True(t, got.AutoFailover)

	policies, err := store.ListDRPolicies()
	require.NoError(t, err)
	assert.Len(t, policies, 1)
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	creds := &types.ProviderCredentials{
		Provider: "aws",
		Type:     "access_key",
		Data:     []byte("ciphertext"),
	}
	require.NoError(t, store.SetCredentials(creds))

	got, err := store.GetCredentials("aws")
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), got.Data)

	require.NoError(t, store.DeleteCredentials("aws"))
	_, err = store.GetCredentials("aws")
	assert.Error(t, err)
}
