package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/config"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/types"
)

func newTestManager(t *testing.T, authEnabled bool) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Auth.Enabled = authEnabled

	mgr, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Shutdown() })
	return mgr
}

func TestSeedWritesDefaults(t *testing.T) {
	mgr := newTestManager(t, false)
	require.NoError(t, mgr.Seed(policy.Default()))
	store := mgr.Store()

	for key, want := range map[string]string{
		types.ConfigSagaEnabled:            "true",
		types.ConfigSagaTimeoutSeconds:     "300",
		types.ConfigMulticloudEnabled:      "true",
		types.ConfigTrafficDefaultProvider: "oci-dns",
	} {
		entry, err := store.GetConfig(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, entry.Value, key)
	}

	providers, err := store.ListProviders()
	require.NoError(t, err)
	require.Len(t, providers, 3)

	aws, err := store.GetProvider("aws")
	require.NoError(t, err)
	assert.Equal(t, "Amazon Web Services", aws.DisplayName)
	assert.Equal(t, "aws-credentials", aws.CredentialsRef)
	assert.ElementsMatch(t, []string{"us-east-1", "eu-west-1", "us-west-2"}, aws.Regions)
	assert.True(t, aws.Enabled)

	health, err := store.GetProviderHealth("gcp")
	require.NoError(t, err)
	assert.True(t, health.Healthy)

	policies, err := store.ListDRPolicies()
	require.NoError(t, err)
	assert.Len(t, policies, 4)

	low, err := store.GetDRPolicy("low")
	require.NoError(t, err)
	assert.Equal(t, "warm_standby", low.Strategy)
	assert.Equal(t, 30, low.RTOTargetMinutes)

	// Auth disabled: no admin token row.
	_, err = store.GetConfig(types.ConfigAuthAdminToken)
	assert.Error(t, err)
}

func TestSeedGeneratesAdminToken(t *testing.T) {
	mgr := newTestManager(t, true)
	require.NoError(t, mgr.Seed(policy.Default()))

	entry, err := mgr.Store().GetConfig(types.ConfigAuthAdminToken)
	require.NoError(t, err)
	assert.Len(t, entry.Value, 64)

	// Second seed keeps the token.
	require.NoError(t, mgr.Seed(policy.Default()))
	again, err := mgr.Store().GetConfig(types.ConfigAuthAdminToken)
	require.NoError(t, err)
	assert.Equal(t, entry.Value, again.Value)
}

func TestSeedPreservesOperatorEdits(t *testing.T) {
	mgr := newTestManager(t, false)
	require.NoError(t, mgr.Seed(policy.Default()))
	store := mgr.Store()

	require.NoError(t, store.SetConfig(types.ConfigSagaTimeoutSeconds, "600"))

	oci, err := store.GetProvider("oci")
	require.NoError(t, err)
	oci.Enabled = false
	require.NoError(t, store.UpdateProvider(oci))

	require.NoError(t, mgr.Seed(policy.Default()))

	entry, err := store.GetConfig(types.ConfigSagaTimeoutSeconds)
	require.NoError(t, err)
	assert.Equal(t, "600", entry.Value)

	oci, err = store.GetProvider("oci")
	require.NoError(t, err)
	assert.False(t, oci.Enabled)
}
