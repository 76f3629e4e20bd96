package policy

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cellgrid/strata/pkg/types"
)

// Model holds the immutable policy data the scheduler consults: the tier
// table and the candidate pool. Everything except the candidates' Healthy
// flag is read-only after load.
type Model struct {
	tiers      map[string]*types.Tier
	tierOrder  []string
	candidates []*types.Candidate
}

// Tier returns the named tier, or false if unknown.
func (m *Model) Tier(name string) (*types.Tier, bool) {
	t, ok := m.tiers[name]
	return t, ok
}

// Tiers returns all tiers in registration order.
func (m *Model) Tiers() []*types.Tier {
	out := make([]*types.Tier, 0, len(m.tierOrder))
	for _, name := range m.tierOrder {
		out = append(out, m.tiers[name])
	}
	return out
}

// Candidates returns the candidate pool in its fixed order. The slice is
// shared; callers must not reorder it. Score ties are broken by this order.
func (m *Model) Candidates() []*types.Candidate {
	return m.candidates
}

// Candidate looks up a pool member by its identity triple.
func (m *Model) Candidate(provider, region, cluster string) (*types.Candidate, bool) {
	for _, c := range m.candidates {
		if c.Provider == provider && c.Region == region && c.RuntimeCluster == cluster {
			return c, true
		}
	}
	return nil, false
}

// Providers returns the distinct providers present in the pool, in pool order.
func (m *Model) Providers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range m.candidates {
		if !seen[c.Provider] {
			seen[c.Provider] = true
			out = append(out, c.Provider)
		}
	}
	return out
}

// Validate checks every tier and candidate invariant and reports all
// violations at once.
func (m *Model) Validate() error {
	var result *multierror.Error

	if len(m.candidates) == 0 {
		result = multierror.Append(result, fmt.Errorf("candidate pool is empty"))
	}

	for _, name := range m.tierOrder {
		t := m.tiers[name]
		if err := t.Weights.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("tier %s: %w", name, err))
		}
	}

	for _, c := range m.candidates {
		if c.Provider == "" || c.Region == "" || c.RuntimeCluster == "" {
			result = multierror.Append(result, fmt.Errorf("candidate %s: incomplete identity", c.Key()))
		}
		for dim, score := range c.Scores {
			if score < 0 || score > 1 {
				result = multierror.Append(result,
					fmt.Errorf("candidate %s: score %s=%.4f outside [0,1]", c.Key(), dim, score))
			}
		}
	}

	return result.ErrorOrNil()
}

// fileModel is the on-disk overlay shape. A present section fully replaces
// the built-in defaults for that section.
type fileModel struct {
	Tiers      []*types.Tier   `yaml:"tiers"`
	Candidates []fileCandidate `yaml:"candidates"`
}

// fileCandidate mirrors types.Candidate but keeps Healthy as a pointer so an
// omitted field defaults to true rather than false.
type fileCandidate struct {
	Provider       string             `yaml:"provider"`
	Region         string             `yaml:"region"`
	RuntimeCluster string             `yaml:"runtime_cluster"`
	Network        map[string]string  `yaml:"network"`
	Capabilities   []types.Capability `yaml:"capabilities"`
	Scores         map[string]float64 `yaml:"scores"`
	Healthy        *bool              `yaml:"healthy"`
}

// Load reads a YAML policy overlay and merges it over the defaults. Missing
// sections keep their default content.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Model from YAML overlay bytes.
func Parse(data []byte) (*Model, error) {
	var file fileModel
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	model := Default()

	if len(file.Tiers) > 0 {
		model.tiers = make(map[string]*types.Tier, len(file.Tiers))
		model.tierOrder = model.tierOrder[:0]
		for _, t := range file.Tiers {
			if _, dup := model.tiers[t.Name]; dup {
				return nil, fmt.Errorf("duplicate tier: %s", t.Name)
			}
			model.tiers[t.Name] = t
			model.tierOrder = append(model.tierOrder, t.Name)
		}
	}

	if len(file.Candidates) > 0 {
		model.candidates = model.candidates[:0]
		for _, fc := range file.Candidates {
			healthy := true
			if fc.Healthy != nil {
				healthy = *fc.Healthy
			}
			model.candidates = append(model.candidates, &types.Candidate{
				Provider:       fc.Provider,
				Region:         fc.Region,
				RuntimeCluster: fc.RuntimeCluster,
				Network:        fc.Network,
				Capabilities:   fc.Capabilities,
				Scores:         fc.Scores,
				Healthy:        healthy,
			})
		}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}
