package replication

import (
	"github.com/cellgrid/strata/pkg/types"
)

// tierDefault is the compiled-in DR posture for one tier. Operators can
// diverge from it by editing the stored DR policy row.
type tierDefault struct {
	strategy          string
	replication       bool
	secondaryCapacity string
	autoFailover      bool
	description       string
}

var tierDefaults = map[string]tierDefault{
	"low": {
		strategy:          types.StrategyWarmStandby,
		replication:       true,
		secondaryCapacity: "full",
		autoFailover:      false,
		description:       "Warm standby with continuous replication. Semi-automatic failover with guardrails.",
	},
	"medium": {
		strategy:          types.StrategyPilotLight,
		replication:       true,
		secondaryCapacity: "minimal",
		autoFailover:      false,
		description:       "Pilot light with replication active. Manual failover via runbook.",
	},
	"critical": {
		strategy:          types.StrategyBackupRestore,
		replication:       false,
		secondaryCapacity: "none",
		autoFailover:      false,
		description:       "Backup and restore only. Cost optimized.",
	},
	"business_critical": {
		strategy:          types.StrategyActiveActive,
		replication:       true,
		secondaryCapacity: "full",
		autoFailover:      true,
		description:       "Active-active with cross-region replication. Automatic failover.",
	},
}

// pairRequired lists tiers whose placements always get a replication pair.
// Medium-tier placements get one only when the request asks for HA; critical
// runs on backups alone.
var pairRequired = map[string]bool{
	"low":               true,
	"business_critical": true,
}

func resolveDefault(tier string) tierDefault {
	if d, ok := tierDefaults[tier]; ok {
		return d
	}
	return tierDefaults["medium"]
}

// NeedsReplication reports whether the tier's DR strategy ships a CDC stream.
func NeedsReplication(tier string) bool {
	return resolveDefault(tier).replication
}

// PairRequired reports whether every placement in the tier gets a pair
// without being asked.
func PairRequired(tier string) bool {
	return pairRequired[tier]
}

// DefaultPolicy builds the seeded DR policy row for a tier. RTO/RPO targets
// come from the tier itself so the policy and scheduling views agree.
func DefaultPolicy(tier *types.Tier) *types.DRPolicy {
	d := resolveDefault(tier.Name)
	return &types.DRPolicy{
		Tier:             tier.Name,
		Strategy:         d.strategy,
		AutoFailover:     d.autoFailover,
		RTOTargetMinutes: tier.RTOMinutes,
		RPOTargetMinutes: tier.RPOMinutes,
		Settings: map[string]interface{}{
			"secondary_capacity": d.secondaryCapacity,
			"description":        d.description,
		},
	}
}
