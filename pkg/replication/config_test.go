package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/types"
)

func TestTierDefaults(t *testing.T) {
	assert.True(t, NeedsReplication("low"))
	assert.True(t, NeedsReplication("medium"))
	assert.False(t, NeedsReplication("critical"))
	assert.True(t, NeedsReplication("business_critical"))

	assert.True(t, PairRequired("low"))
	assert.False(t, PairRequired("medium"))
	assert.False(t, PairRequired("critical"))
	assert.True(t, PairRequired("business_critical"))

	// Unknown tiers take the medium posture.
	assert.True(t, NeedsReplication("platinum"))
	assert.False(t, PairRequired("platinum"))
}

func TestDefaultPolicyFromTier(t *testing.T) {
	model := policy.Default()

	low, ok := model.Tier("low")
	require.True(t, ok)
	p := DefaultPolicy(low)
	assert.Equal(t, types.StrategyWarmStandby, p.Strategy)
	assert.False(t, p.AutoFailover)
	assert.Equal(t, 30, p.RTOTargetMinutes)
	assert.Equal(t, 5, p.RPOTargetMinutes)
	assert.Equal(t, "full", p.Settings["secondary_capacity"])

	bc, ok := model.Tier("business_critical")
	require.True(t, ok)
	p = DefaultPolicy(bc)
	assert.Equal(t, types.StrategyActiveActive, p.Strategy)
	assert.True(t, p.AutoFailover)
	assert.Equal(t, 15, p.RTOTargetMinutes)
	assert.Equal(t, 1, p.RPOTargetMinutes)

	crit, ok := model.Tier("critical")
	require.True(t, ok)
	p = DefaultPolicy(crit)
	assert.Equal(t, types.StrategyBackupRestore, p.Strategy)
	assert.Equal(t, "none", p.Settings["secondary_capacity"])
}

func TestBuildConfigDeterministic(t *testing.T) {
	pair := &types.ReplicationPair{
		Cell:      "cell-a",
		Name:      "orders-db",
		Namespace: "default",
		Primary: types.ReplicationSide{
			Provider: "aws", Region: "us-east-1", RuntimeCluster: "aws-use1-prod-01",
		},
		Secondary: types.ReplicationSide{
			Provider: "gcp", Region: "us-central1", RuntimeCluster: "gcp-usc1-prod-01",
		},
		RPOTargetMinutes: 5,
	}

	cfg := BuildConfig(pair)
	assert.Equal(t, "gg-cell-a-orders-db", cfg.DeploymentName)
	assert.Equal(t, "ext_gg-cell-", cfg.ExtractName)
	assert.Equal(t, "rep_gg-cell-", cfg.ReplicatName)
	assert.Equal(t, "tr_gg-cell-", cfg.TrailName)
	assert.Equal(t, "orders-db-primary.us-east-1.aws.internal", cfg.SourceEndpoint)
	assert.Equal(t, "orders-db-secondary.us-central1.gcp.internal", cfg.TargetEndpoint)
	assert.Equal(t, "vpn_ipsec", cfg.SourceConnection)
	assert.Equal(t, "cloud_interconnect", cfg.TargetConnection)
	assert.Equal(t, int64(150_000), cfg.LagAlertThresholdMS)
	assert.Equal(t, 30, cfg.MonitoringInterval)

	// Same pair, same layout.
	assert.Equal(t, cfg, BuildConfig(pair))
}

func TestBuildConfigTruncatesDeploymentName(t *testing.T) {
	pair := &types.ReplicationPair{
		Cell:             "cell-with-a-very-long-identifier",
		Name:             "checkout-ledger-primary-store",
		Primary:          types.ReplicationSide{Provider: "oci", Region: "us-ashburn-1"},
		Secondary:        types.ReplicationSide{Provider: "aws", Region: "us-east-1"},
		RPOTargetMinutes: 15,
	}

	cfg := BuildConfig(pair)
	assert.Len(t, cfg.DeploymentName, 32)
	assert.Equal(t, "fastconnect", cfg.SourceConnection)
}

func TestConnectionTypeFallback(t *testing.T) {
	assert.Equal(t, "vpn_ipsec", ConnectionType("aws"))
	assert.Equal(t, "cloud_interconnect", ConnectionType("gcp"))
	assert.Equal(t, "fastconnect", ConnectionType("oci"))
	assert.Equal(t, "vpn_ipsec", ConnectionType("azure"))
}

func TestRecordHost(t *testing.T) {
	pair := &types.ReplicationPair{Cell: "cell-a", Name: "orders-db"}
	assert.Equal(t, "orders-db.cell-a.internal", RecordHost(pair))
}

func TestDeploymentClaimShape(t *testing.T) {
	pair := &types.ReplicationPair{
		Cell:      "cell-a",
		Name:      "orders-db",
		Namespace: "default",
		Tier:      "low",
		Primary: types.ReplicationSide{
			Provider: "aws", Region: "us-east-1",
		},
		Secondary: types.ReplicationSide{
			Provider: "gcp", Region: "us-central1",
		},
		RPOTargetMinutes: 5,
	}
	cfg := BuildConfig(pair)
	claim := DeploymentClaim(pair, cfg)

	assert.Equal(t, "replication.platform.example.org/v1alpha1", claim["apiVersion"])
	assert.Equal(t, "ReplicationStreamClaim", claim["kind"])

	metadata := claim["metadata"].(map[string]interface{})
	assert.Equal(t, cfg.DeploymentName, metadata["name"])
	assert.Equal(t, "default", metadata["namespace"])

	spec := claim["spec"].(map[string]interface{})
	source := spec["source"].(map[string]interface{})
	assert.Equal(t, cfg.SourceEndpoint, source["endpoint"])
	assert.Equal(t, "ROW", source["binlogMode"])

	monitoring := spec["monitoring"].(map[string]interface{})
	assert.Len(t, monitoring["alerts"], 3)
}
