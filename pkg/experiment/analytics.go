package experiment

import (
	"math"
	"sync"

	"github.com/cellgrid/strata/pkg/types"
)

// Analytics accumulates placement counters in memory. All methods are safe
// under concurrent scheduler calls.
type Analytics struct {
	mu               sync.Mutex
	totalPlacements  int
	totalRequests    int
	gateRejections   int
	providerCounts   map[string]int
	regionCounts     map[string]int
	tierCounts       map[string]int
	experimentCounts map[string]map[string]int
	scoreSums        map[string]float64
	scoreCounts      map[string]int
}

// NewAnalytics creates an empty analytics accumulator.
func NewAnalytics() *Analytics {
	return &Analytics{
		providerCounts:   make(map[string]int),
		regionCounts:     make(map[string]int),
		tierCounts:       make(map[string]int),
		experimentCounts: make(map[string]map[string]int),
		scoreSums:        make(map[string]float64),
		scoreCounts:      make(map[string]int),
	}
}

// RecordPlacement counts one successful decision.
func (a *Analytics) RecordPlacement(provider, region, tier string, score float64, exp *types.ExperimentInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalPlacements++
	a.totalRequests++
	a.providerCounts[provider]++
	a.regionCounts[provider+"/"+region]++
	a.tierCounts[tier]++
	a.scoreSums[provider] += score
	a.scoreCounts[provider]++

	if exp != nil {
		groups, ok := a.experimentCounts[exp.ExperimentID]
		if !ok {
			groups = make(map[string]int)
			a.experimentCounts[exp.ExperimentID] = groups
		}
		groups[exp.Group]++
	}
}

// RecordGateRejection counts a request that found no gate-passing candidate.
// A rejected request still counts toward total_requests.
func (a *Analytics) RecordGateRejection() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gateRejections++
	a.totalRequests++
}

// ProviderStat is one provider's share of placements.
type ProviderStat struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Snapshot is a point-in-time copy of the analytics counters.
type Snapshot struct {
	TotalPlacements      int                       `json:"total_placements"`
	TotalRequests        int                       `json:"total_requests"`
	GateRejections       int                       `json:"gate_rejections"`
	GateRejectionRate    float64                   `json:"gate_rejection_rate"`
	ProviderDistribution map[string]ProviderStat   `json:"provider_distribution"`
	RegionDistribution   map[string]int            `json:"region_distribution"`
	TierDistribution     map[string]int            `json:"tier_distribution"`
	AvgScoreByProvider   map[string]float64        `json:"avg_score_by_provider"`
	Experiments          map[string]map[string]int `json:"experiments"`
}

// Snapshot returns a consistent copy of all counters.
func (a *Analytics) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		TotalPlacements:      a.totalPlacements,
		TotalRequests:        a.totalRequests,
		GateRejections:       a.gateRejections,
		ProviderDistribution: make(map[string]ProviderStat, len(a.providerCounts)),
		RegionDistribution:   make(map[string]int, len(a.regionCounts)),
		TierDistribution:     make(map[string]int, len(a.tierCounts)),
		AvgScoreByProvider:   make(map[string]float64, len(a.scoreCounts)),
		Experiments:          make(map[string]map[string]int, len(a.experimentCounts)),
	}

	if a.totalRequests > 0 {
		snap.GateRejectionRate = round4(float64(a.gateRejections) / float64(a.totalRequests))
	}
	for provider, count := range a.providerCounts {
		stat := ProviderStat{Count: count}
		if a.totalPlacements > 0 {
			stat.Percentage = round2(float64(count) / float64(a.totalPlacements) * 100)
		}
		snap.ProviderDistribution[provider] = stat
	}
	for key, count := range a.regionCounts {
		snap.RegionDistribution[key] = count
	}
	for tier, count := range a.tierCounts {
		snap.TierDistribution[tier] = count
	}
	for provider, count := range a.scoreCounts {
		if count > 0 {
			snap.AvgScoreByProvider[provider] = round4(a.scoreSums[provider] / float64(count))
		}
	}
	for id, groups := range a.experimentCounts {
		copied := make(map[string]int, len(groups))
		for g, n := range groups {
			copied[g] = n
		}
		snap.Experiments[id] = copied
	}
	return snap
}

// Reset zeroes all counters. Used by tests and the admin API.
func (a *Analytics) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalPlacements = 0
	a.totalRequests = 0
	a.gateRejections = 0
	a.providerCounts = make(map[string]int)
	a.regionCounts = make(map[string]int)
	a.tierCounts = make(map[string]int)
	a.experimentCounts = make(map[string]map[string]int)
	a.scoreSums = make(map[string]float64)
	a.scoreCounts = make(map[string]int)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
