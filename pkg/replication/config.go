package replication

import (
	"fmt"

	"github.com/cellgrid/strata/pkg/types"
)

// connectionTypes maps a provider to the cross-cloud link its CDC traffic
// rides on.
var connectionTypes = map[string]string{
	"aws": "vpn_ipsec",
	"gcp": "cloud_interconnect",
	"oci": "fastconnect",
}

const defaultConnectionType = "vpn_ipsec"

// monitoringIntervalSeconds is how often the replication deployment samples
// lag.
const monitoringIntervalSeconds = 30

// ConnectionType returns the network link type used to reach a provider.
func ConnectionType(provider string) string {
	if t, ok := connectionTypes[provider]; ok {
		return t
	}
	return defaultConnectionType
}

// BuildConfig derives the replication deployment layout from a pair's
// identity and targets. The layout is deterministic: rebuilding from the
// same pair yields the same names and endpoints, so config can be recreated
// from the pair row alone.
func BuildConfig(pair *types.ReplicationPair) *types.ReplicationConfig {
	deployment := truncate(fmt.Sprintf("gg-%s-%s", pair.Cell, pair.Name), 32)
	short := truncate(deployment, 8)
	rpoMS := int64(pair.RPOTargetMinutes) * 60_000

	return &types.ReplicationConfig{
		DeploymentName: deployment,
		ExtractName:    "ext_" + short,
		ReplicatName:   "rep_" + short,
		TrailName:      "tr_" + short,
		SourceEndpoint: fmt.Sprintf("%s-primary.%s.%s.internal",
			pair.Name, pair.Primary.Region, pair.Primary.Provider),
		TargetEndpoint: fmt.Sprintf("%s-secondary.%s.%s.internal",
			pair.Name, pair.Secondary.Region, pair.Secondary.Provider),
		SourceConnection:    ConnectionType(pair.Primary.Provider),
		TargetConnection:    ConnectionType(pair.Secondary.Provider),
		LagAlertThresholdMS: rpoMS / 2,
		MonitoringInterval:  monitoringIntervalSeconds,
	}
}

// RecordHost is the stable client-facing name the traffic provider steers
// between the pair's sides.
func RecordHost(pair *types.ReplicationPair) string {
	return fmt.Sprintf("%s.%s.internal", pair.Name, pair.Cell)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
