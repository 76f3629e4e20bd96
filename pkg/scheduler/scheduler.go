package scheduler

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/cellgrid/strata/pkg/experiment"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/types"
)

// CostWeightCap bounds the cost dimension after the prefer_cost_optimization
// boost so one flag cannot dominate a tier's weight profile.
const (
	CostWeightBoost = 1.2
	CostWeightCap   = 0.60
)

// Scheduler turns a schedule request into a placement decision. It owns no
// durable state: the policy model is immutable after load, provider health
// and breakers live in the registry, experiments and flags in their own
// registry.
type Scheduler struct {
	model       *policy.Model
	health      *HealthRegistry
	experiments *experiment.Registry
	analytics   *experiment.Analytics
	logger      zerolog.Logger
}

// New creates a scheduler over the given policy model, health registry and
// experiment registry.
func New(model *policy.Model, health *HealthRegistry, experiments *experiment.Registry, analytics *experiment.Analytics) *Scheduler {
	return &Scheduler{
		model:       model,
		health:      health,
		experiments: experiments,
		analytics:   analytics,
		logger:      log.WithComponent("scheduler"),
	}
}

// Model returns the scheduler's policy model.
func (s *Scheduler) Model() *policy.Model { return s.model }

// Health returns the scheduler's health registry.
func (s *Scheduler) Health() *HealthRegistry { return s.health }

// Experiments returns the scheduler's experiment registry.
func (s *Scheduler) Experiments() *experiment.Registry { return s.experiments }

// Analytics returns the scheduler's analytics recorder.
func (s *Scheduler) Analytics() *experiment.Analytics { return s.analytics }

// scored pairs a candidate with its weighted total for ranking.
type scored struct {
	candidate *types.Candidate
	total     float64
	subscores map[string]float64
}

// Schedule runs the placement pipeline over the full candidate pool: tier
// resolution, health filter, weight resolution, gate check, scoring, ranking,
// failover selection.
func (s *Scheduler) Schedule(req types.ScheduleRequest) (*types.Decision, error) {
	return s.ScheduleAmong(req, s.model.Candidates())
}

// ScheduleAmong runs the placement pipeline over an explicit candidate
// subset. Forced failover (provider exclusion) and multi-cloud fan-out
// (single-provider pools) go through here.
func (s *Scheduler) ScheduleAmong(req types.ScheduleRequest, pool []*types.Candidate) (*types.Decision, error) {
	tier, ok := s.model.Tier(req.Tier)
	if !ok {
		return nil, types.NewSchedulingError(types.UnknownTier, "unknown tier: %s", req.Tier)
	}

	if len(pool) == 0 {
		return nil, types.NewSchedulingError(types.EmptyPool, "candidate pool is empty")
	}

	// Health filter: operator flag, candidate flag and breaker all hold.
	healthy, skipped := s.filterHealthy(pool)
	if len(healthy) == 0 {
		return nil, types.NewSchedulingError(types.NoHealthyCandidates,
			"no healthy candidates: %d evaluated, %d skipped", len(pool), len(skipped))
	}

	weights, expInfo := s.experiments.ResolveWeights(tier.Name, req.Name, tier.Weights)
	if s.experiments.Flag(experiment.FlagPreferCostOptimization) {
		weights = boostCostWeight(weights)
	}

	// Gates: tier capabilities, plus multi_az when the request asks for HA.
	gates := make([]types.Capability, len(tier.Capabilities))
	copy(gates, tier.Capabilities)
	haEnforced := false
	if req.HA && !lo.Contains(gates, types.CapabilityMultiAZ) {
		gates = append(gates, types.CapabilityMultiAZ)
		haEnforced = true
	}

	passers := s.gateAndScore(healthy, gates, weights)
	if len(passers) == 0 {
		s.analytics.RecordGateRejection()
		return nil, types.NewSchedulingError(types.NoGatePassers,
			"no candidates pass required gates for tier %s: %v", tier.Name, capabilityNames(gates))
	}

	// Stable sort keeps pool order for equal scores.
	sort.SliceStable(passers, func(i, j int) bool {
		return passers[i].total > passers[j].total
	})

	winner := passers[0]
	failover := s.selectFailover(tier.Name, winner, passers)

	decision := &types.Decision{
		Provider:       winner.candidate.Provider,
		Region:         winner.candidate.Region,
		RuntimeCluster: winner.candidate.RuntimeCluster,
		Network:        winner.candidate.Network,
		TotalScore:     winner.total,
		Subscores:      winner.subscores,
		Experiment:     expInfo,
		Failover:       failover,
		Reason: &types.Reason{
			Tier:                  tier.Name,
			RTOMinutes:            tier.RTOMinutes,
			RPOMinutes:            tier.RPOMinutes,
			Gates:                 capabilityNames(gates),
			Weights:               weights,
			HAEnforced:            haEnforced,
			Selected:              scorecard(winner, 0),
			TopCandidates:         topCandidates(passers, 3),
			CandidatesEvaluated:   len(pool),
			CandidatesHealthy:     len(healthy),
			CandidatesPassedGates: len(passers),
			UnhealthySkipped:      skipped,
			Experiment:            expInfo,
			Failover:              failover,
		},
	}

	s.analytics.RecordPlacement(decision.Provider, decision.Region, tier.Name, decision.TotalScore, expInfo)

	event := s.logger.Info().
		Str("name", req.Name).
		Str("tier", tier.Name).
		Str("provider", decision.Provider).
		Str("region", decision.Region).
		Float64("score", decision.TotalScore)
	if expInfo != nil {
		event = event.Str("experiment", expInfo.ExperimentID).Str("group", expInfo.Group)
	}
	event.Msg("Placement decided")

	return decision, nil
}

// RecordSuccess closes the provider's breaker after a successful apply.
func (s *Scheduler) RecordSuccess(provider string) {
	s.health.Breaker(provider).RecordSuccess()
}

// RecordFailure counts an apply failure against the provider's breaker.
func (s *Scheduler) RecordFailure(provider string) {
	b := s.health.Breaker(provider)
	b.RecordFailure()
	if b.State() == types.BreakerOpen {
		s.logger.Warn().Str("provider", provider).Int("failures", b.FailureCount()).
			Msg("Circuit breaker opened")
	}
}

func (s *Scheduler) filterHealthy(pool []*types.Candidate) ([]*types.Candidate, []types.UnhealthySkip) {
	var healthy []*types.Candidate
	var skipped []types.UnhealthySkip

	for _, c := range pool {
		if !s.health.ProviderHealthy(c.Provider) || !s.health.CandidateHealthy(c.Key(), c.Healthy) {
			skipped = append(skipped, types.UnhealthySkip{
				Provider:       c.Provider,
				Region:         c.Region,
				RuntimeCluster: c.RuntimeCluster,
				Reason:         types.SkipProviderUnhealthy,
			})
			continue
		}
		if !s.health.Breaker(c.Provider).Allow() {
			skipped = append(skipped, types.UnhealthySkip{
				Provider:       c.Provider,
				Region:         c.Region,
				RuntimeCluster: c.RuntimeCluster,
				Reason:         types.SkipCircuitOpen,
			})
			continue
		}
		healthy = append(healthy, c)
	}
	return healthy, skipped
}

func (s *Scheduler) gateAndScore(candidates []*types.Candidate, gates []types.Capability, weights types.Weights) []scored {
	var passers []scored
	for _, c := range candidates {
		if missing := missingGates(c, gates); len(missing) > 0 {
			s.logger.Debug().Str("candidate", c.Key()).Strs("missing", missing).
				Msg("Candidate rejected by gates")
			continue
		}

		subscores := make(map[string]float64, len(weights))
		var total float64
		for dim, w := range weights {
			score := c.Scores[dim] // missing dimension scores 0
			subscores[dim] = score
			total += w * score
		}
		passers = append(passers, scored{candidate: c, total: total, subscores: subscores})
	}
	return passers
}

// failoverTiers get a cross-cloud standby recorded with every decision.
var failoverTiers = map[string]bool{
	"low":               true,
	"business_critical": true,
}

// selectFailover picks a cross-cloud standby for tiers that require one:
// the best-ranked passer on a different provider than the winner.
func (s *Scheduler) selectFailover(tierName string, winner scored, ranked []scored) *types.FailoverDecision {
	if !failoverTiers[tierName] {
		return nil
	}
	for _, sc := range ranked {
		if sc.candidate.Provider == winner.candidate.Provider {
			continue
		}
		return &types.FailoverDecision{
			Provider:       sc.candidate.Provider,
			Region:         sc.candidate.Region,
			RuntimeCluster: sc.candidate.RuntimeCluster,
			TotalScore:     sc.total,
			AntiAffinity:   fmt.Sprintf("different_cloud_from_%s", winner.candidate.Provider),
		}
	}
	return nil
}

// boostCostWeight raises the cost dimension by 20% (capped) and shrinks the
// other dimensions proportionally so the sum stays exactly 1.0.
func boostCostWeight(weights types.Weights) types.Weights {
	cost, ok := weights[types.DimensionCost]
	if !ok {
		return weights
	}

	boosted := cost * CostWeightBoost
	if boosted > CostWeightCap {
		boosted = CostWeightCap
	}

	var others float64
	for dim, w := range weights {
		if dim != types.DimensionCost {
			others += w
		}
	}

	out := make(types.Weights, len(weights))
	out[types.DimensionCost] = boosted
	if others > 0 {
		scale := (1.0 - boosted) / others
		for dim, w := range weights {
			if dim != types.DimensionCost {
				out[dim] = w * scale
			}
		}
	}
	return out
}

func missingGates(c *types.Candidate, gates []types.Capability) []string {
	var missing []string
	for _, gate := range gates {
		if !c.HasCapability(gate) {
			missing = append(missing, fmt.Sprintf("missing required capability: %s", gate))
		}
	}
	return missing
}

func capabilityNames(gates []types.Capability) []string {
	return lo.Map(gates, func(c types.Capability, _ int) string { return string(c) })
}

func scorecard(sc scored, rank int) types.Scorecard {
	return types.Scorecard{
		Rank:           rank,
		Provider:       sc.candidate.Provider,
		Region:         sc.candidate.Region,
		RuntimeCluster: sc.candidate.RuntimeCluster,
		TotalScore:     sc.total,
		Subscores:      sc.subscores,
	}
}

func topCandidates(ranked []scored, n int) []types.Scorecard {
	if len(ranked) < n {
		n = len(ranked)
	}
	top := make([]types.Scorecard, 0, n)
	for i := 0; i < n; i++ {
		top = append(top, scorecard(ranked[i], i+1))
	}
	return top
}
