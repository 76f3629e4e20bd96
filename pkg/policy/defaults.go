package policy

import "github.com/cellgrid/strata/pkg/types"

// Default returns the compiled-in policy model: the four standard tiers and
// the seven-candidate production pool. Deployments override either section
// with a YAML policy file.
func Default() *Model {
	m := &Model{
		tiers: make(map[string]*types.Tier),
	}
	for _, t := range defaultTiers() {
		m.tiers[t.Name] = t
		m.tierOrder = append(m.tierOrder, t.Name)
	}
	m.candidates = defaultCandidates()
	return m
}

func defaultTiers() []*types.Tier {
	return []*types.Tier{
		{
			Name:       "low",
			RTOMinutes: 30,
			RPOMinutes: 5,
			Capabilities: []types.Capability{
				types.CapabilityPITR,
				types.CapabilityMultiAZ,
				types.CapabilityPrivateNet,
			},
			Weights: types.Weights{
				types.DimensionLatency:  0.30,
				types.DimensionDR:       0.30,
				types.DimensionMaturity: 0.25,
				types.DimensionCost:     0.15,
			},
		},
		{
			Name:       "medium",
			RTOMinutes: 120,
			RPOMinutes: 15,
			Capabilities: []types.Capability{
				types.CapabilityPITR,
				types.CapabilityPrivateNet,
			},
			Weights: types.Weights{
				types.DimensionLatency:  0.25,
				types.DimensionDR:       0.25,
				types.DimensionMaturity: 0.25,
				types.DimensionCost:     0.25,
			},
		},
		{
			Name:       "critical",
			RTOMinutes: 480,
			RPOMinutes: 60,
			Capabilities: []types.Capability{
				types.CapabilityPrivateNet,
			},
			Weights: types.Weights{
				types.DimensionLatency:  0.15,
				types.DimensionDR:       0.15,
				types.DimensionMaturity: 0.20,
				types.DimensionCost:     0.50,
			},
		},
		{
			Name:       "business_critical",
			RTOMinutes: 15,
			RPOMinutes: 1,
			Capabilities: []types.Capability{
				types.CapabilityPITR,
				types.CapabilityMultiAZ,
				types.CapabilityPrivateNet,
				types.CapabilityCrossRegionRepl,
			},
			Weights: types.Weights{
				types.DimensionLatency:  0.25,
				types.DimensionDR:       0.40,
				types.DimensionMaturity: 0.25,
				types.DimensionCost:     0.10,
			},
		},
	}
}

func defaultCandidates() []*types.Candidate {
	return []*types.Candidate{
		{
			Provider:       "aws",
			Region:         "us-east-1",
			RuntimeCluster: "aws-use1-prod-01",
			Network:        map[string]string{"vpc_id": "vpc-aws-use1", "subnet_group": "db-private-use1"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ,
				types.CapabilityPrivateNet, types.CapabilityCrossRegionRepl,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.90, types.DimensionDR: 0.95,
				types.DimensionMaturity: 0.95, types.DimensionCost: 0.50,
			},
			Healthy: true,
		},
		{
			Provider:       "aws",
			Region:         "eu-west-1",
			RuntimeCluster: "aws-euw1-prod-01",
			Network:        map[string]string{"vpc_id": "vpc-aws-euw1", "subnet_group": "db-private-euw1"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ,
				types.CapabilityPrivateNet, types.CapabilityCrossRegionRepl,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.70, types.DimensionDR: 0.90,
				types.DimensionMaturity: 0.90, types.DimensionCost: 0.45,
			},
			Healthy: true,
		},
		{
			Provider:       "aws",
			Region:         "us-west-2",
			RuntimeCluster: "aws-usw2-prod-01",
			Network:        map[string]string{"vpc_id": "vpc-aws-usw2", "subnet_group": "db-private-usw2"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNet,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.85, types.DimensionDR: 0.90,
				types.DimensionMaturity: 0.90, types.DimensionCost: 0.55,
			},
			Healthy: true,
		},
		{
			Provider:       "gcp",
			Region:         "us-central1",
			RuntimeCluster: "gcp-usc1-prod-01",
			Network:        map[string]string{"vpc_id": "vpc-gcp-usc1", "subnet_group": "db-private-usc1"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNet,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.88, types.DimensionDR: 0.85,
				types.DimensionMaturity: 0.88, types.DimensionCost: 0.65,
			},
			Healthy: true,
		},
		{
			Provider:       "gcp",
			Region:         "europe-west1",
			RuntimeCluster: "gcp-euw1-prod-01",
			Network:        map[string]string{"vpc_id": "vpc-gcp-euw1", "subnet_group": "db-private-euw1"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNet,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.72, types.DimensionDR: 0.82,
				types.DimensionMaturity: 0.85, types.DimensionCost: 0.60,
			},
			Healthy: true,
		},
		{
			Provider:       "oci",
			Region:         "us-ashburn-1",
			RuntimeCluster: "oci-ash-prod-01",
			Network:        map[string]string{"vcn_id": "vcn-oci-ash", "subnet_group": "db-private-ash"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityPrivateNet,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.80, types.DimensionDR: 0.70,
				types.DimensionMaturity: 0.65, types.DimensionCost: 0.85,
			},
			Healthy: true,
		},
		{
			Provider:       "oci",
			Region:         "eu-frankfurt-1",
			RuntimeCluster: "oci-fra-prod-01",
			Network:        map[string]string{"vcn_id": "vcn-oci-fra", "subnet_group": "db-private-fra"},
			Capabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityPrivateNet,
			},
			Scores: map[string]float64{
				types.DimensionLatency: 0.68, types.DimensionDR: 0.65,
				types.DimensionMaturity: 0.60, types.DimensionCost: 0.90,
			},
			Healthy: true,
		},
	}
}
