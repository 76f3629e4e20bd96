package experiment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/types"
)

func evenWeights() types.Weights {
	return types.Weights{"latency": 0.25, "dr": 0.25, "maturity": 0.25, "cost": 0.25}
}

func costWeights() types.Weights {
	return types.Weights{"latency": 0.05, "dr": 0.05, "maturity": 0.10, "cost": 0.80}
}

func TestAssignGroupDeterministic(t *testing.T) {
	first := AssignGroup("exp-1", "orders-db", 0.5)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, AssignGroup("exp-1", "orders-db", 0.5))
	}
}

func TestAssignGroupBoundaries(t *testing.T) {
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("resource-%d", i)
		assert.Equal(t, types.GroupVariant, AssignGroup("exp-full", name, 1.0))
		assert.Equal(t, types.GroupControl, AssignGroup("exp-off", name, 0.0))
	}
}

func TestAssignGroupSplits(t *testing.T) {
	variants := 0
	total := 2000
	for i := 0; i < total; i++ {
		if AssignGroup("exp-half", fmt.Sprintf("name-%d", i), 0.5) == types.GroupVariant {
			variants++
		}
	}
	// md5 buckets are uniform enough for a loose band.
	assert.Greater(t, variants, total*35/100)
	assert.Less(t, variants, total*65/100)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		exp     *types.Experiment
		wantErr bool
	}{
		{
			name: "valid",
			exp:  &types.Experiment{ID: "exp-1", VariantWeights: costWeights(), TrafficFraction: 0.5},
		},
		{
			name:    "missing id",
			exp:     &types.Experiment{VariantWeights: costWeights(), TrafficFraction: 0.5},
			wantErr: true,
		},
		{
			name:    "traffic below zero",
			exp:     &types.Experiment{ID: "exp-2", VariantWeights: costWeights(), TrafficFraction: -0.1},
			wantErr: true,
		},
		{
			name:    "traffic above one",
			exp:     &types.Experiment{ID: "exp-3", VariantWeights: costWeights(), TrafficFraction: 1.5},
			wantErr: true,
		},
		{
			name: "weights do not sum",
			exp: &types.Experiment{
				ID:              "exp-4",
				VariantWeights:  types.Weights{"latency": 0.9, "cost": 0.9},
				TrafficFraction: 0.5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Create(tt.exp)
			if tt.wantErr {
				var verr *types.ValidationError
				require.Error(t, err)
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "*", tt.exp.Tier, "empty tier selector should default to *")
				assert.False(t, tt.exp.CreatedAt.IsZero())
			}
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(&types.Experiment{ID: "exp-1", VariantWeights: evenWeights(), TrafficFraction: 1}))

	err := r.Create(&types.Experiment{ID: "exp-1", VariantWeights: evenWeights(), TrafficFraction: 1})
	var cerr *types.ConflictError
	assert.ErrorAs(t, err, &cerr)
}

func TestResolveWeights(t *testing.T) {
	tierWeights := evenWeights()

	tests := []struct {
		name        string
		experiments []*types.Experiment
		tier        string
		wantExpID   string
		wantVariant bool
	}{
		{
			name: "no experiments",
			tier: "medium",
		},
		{
			name: "disabled experiment skipped",
			experiments: []*types.Experiment{
				{ID: "off", VariantWeights: costWeights(), TrafficFraction: 1, Tier: "*", Enabled: false},
			},
			tier: "medium",
		},
		{
			name: "tier mismatch skipped",
			experiments: []*types.Experiment{
				{ID: "crit-only", VariantWeights: costWeights(), TrafficFraction: 1, Tier: "critical", Enabled: true},
			},
			tier: "medium",
		},
		{
			name: "full traffic assigns variant",
			experiments: []*types.Experiment{
				{ID: "exp-cost", VariantWeights: costWeights(), TrafficFraction: 1, Tier: "*", Enabled: true},
			},
			tier:        "medium",
			wantExpID:   "exp-cost",
			wantVariant: true,
		},
		{
			name: "zero traffic assigns control",
			experiments: []*types.Experiment{
				{ID: "exp-zero", VariantWeights: costWeights(), TrafficFraction: 0, Tier: "*", Enabled: true},
			},
			tier:      "medium",
			wantExpID: "exp-zero",
		},
		{
			name: "registration order wins",
			experiments: []*types.Experiment{
				{ID: "first", VariantWeights: costWeights(), TrafficFraction: 1, Tier: "*", Enabled: true},
				{ID: "second", VariantWeights: evenWeights(), TrafficFraction: 1, Tier: "*", Enabled: true},
			},
			tier:        "medium",
			wantExpID:   "first",
			wantVariant: true,
		},
		{
			name: "wildcard matches any tier",
			experiments: []*types.Experiment{
				{ID: "wild", VariantWeights: costWeights(), TrafficFraction: 1, Tier: "*", Enabled: true},
			},
			tier:        "business_critical",
			wantExpID:   "wild",
			wantVariant: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, exp := range tt.experiments {
				require.NoError(t, r.Create(exp))
			}

			weights, info := r.ResolveWeights(tt.tier, "orders-db", tierWeights)

			if tt.wantExpID == "" {
				assert.Nil(t, info)
				assert.Equal(t, tierWeights, weights)
				return
			}
			require.NotNil(t, info)
			assert.Equal(t, tt.wantExpID, info.ExperimentID)
			if tt.wantVariant {
				assert.Equal(t, types.GroupVariant, info.Group)
				assert.Equal(t, costWeights(), weights)
			} else {
				assert.Equal(t, types.GroupControl, info.Group)
				assert.Equal(t, tierWeights, weights)
			}
		})
	}
}

func TestDeleteAndEnable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(&types.Experiment{ID: "exp-1", VariantWeights: costWeights(), TrafficFraction: 1, Enabled: true}))

	require.NoError(t, r.SetEnabled("exp-1", false))
	_, info := r.ResolveWeights("medium", "x", evenWeights())
	assert.Nil(t, info)

	require.NoError(t, r.Delete("exp-1"))
	assert.Empty(t, r.List())

	var nf *types.NotFoundError
	assert.ErrorAs(t, r.Delete("exp-1"), &nf)
	assert.ErrorAs(t, r.SetEnabled("exp-1", true), &nf)
}

func TestFlags(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Flag("prefer_cost_optimization"), "unset flag defaults to false")

	r.SetFlag("prefer_cost_optimization", true)
	assert.True(t, r.Flag("prefer_cost_optimization"))

	r.SetFlag("other", false)
	flags := r.Flags()
	assert.Len(t, flags, 2)

	r.DeleteFlag("prefer_cost_optimization")
	assert.False(t, r.Flag("prefer_cost_optimization"))
}
