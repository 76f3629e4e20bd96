package replication

import (
	"github.com/cellgrid/strata/pkg/types"
)

// DeploymentClaim renders the replication deployment as a claim document for
// the provisioner. One deployment per pair keeps the blast radius of a bad
// config to a single service.
func DeploymentClaim(pair *types.ReplicationPair, cfg *types.ReplicationConfig) types.Claim {
	return types.Claim{
		"apiVersion": "replication.platform.example.org/v1alpha1",
		"kind":       "ReplicationStreamClaim",
		"metadata": map[string]interface{}{
			"name":      cfg.DeploymentName,
			"namespace": pair.Namespace,
			"labels": map[string]interface{}{
				"platform.example.org/component": "replication",
				"platform.example.org/cell":      pair.Cell,
				"platform.example.org/tier":      pair.Tier,
				"platform.example.org/pair":      pair.Name,
			},
		},
		"spec": map[string]interface{}{
			"technology": "mysql",
			"source": map[string]interface{}{
				"provider":       pair.Primary.Provider,
				"endpoint":       cfg.SourceEndpoint,
				"connectionType": cfg.SourceConnection,
				"binlogMode":     "ROW",
				"binlogRowImage": "FULL",
			},
			"target": map[string]interface{}{
				"provider":       pair.Secondary.Provider,
				"endpoint":       cfg.TargetEndpoint,
				"connectionType": cfg.TargetConnection,
			},
			"extract": map[string]interface{}{
				"name":  cfg.ExtractName,
				"type":  "INTEGRATED_EXTRACT",
				"trail": cfg.TrailName,
			},
			"replicat": map[string]interface{}{
				"name":             cfg.ReplicatName,
				"type":             "INTEGRATED_REPLICAT",
				"trail":            cfg.TrailName,
				"handleCollisions": true,
			},
			"monitoring": map[string]interface{}{
				"lagAlertThresholdMs": cfg.LagAlertThresholdMS,
				"intervalSeconds":     cfg.MonitoringInterval,
				"alerts": []interface{}{
					map[string]interface{}{
						"name":      cfg.DeploymentName + "-lag-warning",
						"condition": "lag_ms > rpo_target * 0.5",
						"severity":  "WARNING",
					},
					map[string]interface{}{
						"name":      cfg.DeploymentName + "-lag-critical",
						"condition": "lag_ms > rpo_target * 0.8",
						"severity":  "CRITICAL",
					},
					map[string]interface{}{
						"name":      cfg.DeploymentName + "-extract-stopped",
						"condition": "extract_status != RUNNING",
						"severity":  "CRITICAL",
					},
				},
			},
		},
	}
}
