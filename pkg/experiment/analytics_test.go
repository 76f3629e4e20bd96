package experiment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cellgrid/strata/pkg/types"
)

func TestAnalyticsCounters(t *testing.T) {
	a := NewAnalytics()

	a.RecordPlacement("aws", "us-east-1", "medium", 0.80, nil)
	a.RecordPlacement("aws", "us-east-1", "medium", 0.90, nil)
	a.RecordPlacement("gcp", "us-central1", "low", 0.70, &types.ExperimentInfo{
		ExperimentID: "exp-1", Group: types.GroupVariant,
	})
	a.RecordPlacement("gcp", "us-central1", "low", 0.60, &types.ExperimentInfo{
		ExperimentID: "exp-1", Group: types.GroupControl,
	})
	a.RecordGateRejection()

	snap := a.Snapshot()

	assert.Equal(t, 4, snap.TotalPlacements)
	assert.Equal(t, 5, snap.TotalRequests)
	assert.Equal(t, 1, snap.GateRejections)
	assert.InDelta(t, 0.2, snap.GateRejectionRate, 1e-9)

	assert.Equal(t, 2, snap.ProviderDistribution["aws"].Count)
	assert.InDelta(t, 50.0, snap.ProviderDistribution["aws"].Percentage, 1e-9)
	assert.Equal(t, 2, snap.RegionDistribution["aws/us-east-1"])
	assert.Equal(t, 2, snap.TierDistribution["medium"])
	assert.Equal(t, 2, snap.TierDistribution["low"])

	assert.InDelta(t, 0.85, snap.AvgScoreByProvider["aws"], 1e-9)
	assert.InDelta(t, 0.65, snap.AvgScoreByProvider["gcp"], 1e-9)

	assert.Equal(t, 1, snap.Experiments["exp-1"][types.GroupVariant])
	assert.Equal(t, 1, snap.Experiments["exp-1"][types.GroupControl])
}

func TestAnalyticsEmptySnapshot(t *testing.T) {
	snap := NewAnalytics().Snapshot()

	assert.Zero(t, snap.TotalRequests)
	assert.Zero(t, snap.GateRejectionRate)
	assert.Empty(t, snap.ProviderDistribution)
}

func TestAnalyticsConcurrency(t *testing.T) {
	a := NewAnalytics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				a.RecordPlacement("aws", "us-east-1", "medium", 0.8, nil)
				if j%10 == 0 {
					a.RecordGateRejection()
				}
				_ = a.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	assert.Equal(t, 2000, snap.TotalPlacements)
	assert.Equal(t, 200, snap.GateRejections)
	assert.Equal(t, 2200, snap.TotalRequests)
}

func TestAnalyticsReset(t *testing.T) {
	a := NewAnalytics()
	a.RecordPlacement("aws", "us-east-1", "medium", 0.8, nil)
	a.Reset()

	snap := a.Snapshot()
	assert.Zero(t, snap.TotalPlacements)
	assert.Empty(t, snap.ProviderDistribution)
}
