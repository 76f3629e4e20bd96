package experiment

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cellgrid/strata/pkg/types"
)

// Registry holds the experiments and feature flags consulted during weight
// resolution. Experiments are walked in registration order; the first enabled
// experiment whose tier selector matches wins.
type Registry struct {
	mu          sync.RWMutex
	experiments []*types.Experiment
	byID        map[string]*types.Experiment
	flags       map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*types.Experiment),
		flags: make(map[string]bool),
	}
}

// Create validates and registers an experiment.
func (r *Registry) Create(exp *types.Experiment) error {
	if exp.ID == "" {
		return &types.ValidationError{Violations: []string{"experiment id is required"}}
	}
	if exp.TrafficFraction < 0 || exp.TrafficFraction > 1 {
		return &types.ValidationError{Violations: []string{"traffic_percentage must be between 0.0 and 1.0"}}
	}
	if err := exp.VariantWeights.Validate(); err != nil {
		return &types.ValidationError{Violations: []string{fmt.Sprintf("variant_weights: %v", err)}}
	}
	if exp.Tier == "" {
		exp.Tier = "*"
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[exp.ID]; exists {
		return &types.ConflictError{Message: fmt.Sprintf("experiment already exists: %s", exp.ID)}
	}
	r.experiments = append(r.experiments, exp)
	r.byID[exp.ID] = exp
	return nil
}

// Get returns the experiment with the given id.
func (r *Registry) Get(id string) (*types.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.byID[id]
	if !ok {
		return nil, &types.NotFoundError{Resource: "experiment", Key: id}
	}
	return exp, nil
}

// List returns all experiments in registration order.
func (r *Registry) List() []*types.Experiment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Experiment, len(r.experiments))
	copy(out, r.experiments)
	return out
}

// Delete removes an experiment.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return &types.NotFoundError{Resource: "experiment", Key: id}
	}
	delete(r.byID, id)
	for i, exp := range r.experiments {
		if exp.ID == id {
			r.experiments = append(r.experiments[:i], r.experiments[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled flips an experiment without removing it.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.byID[id]
	if !ok {
		return &types.NotFoundError{Resource: "experiment", Key: id}
	}
	exp.Enabled = enabled
	return nil
}

// AssignGroup deterministically buckets a request into control or variant.
// The mapping is purely a function of the experiment id and the request name:
// the first 32 bits of md5("<id>:<name>") interpreted as a fraction of
// 0xFFFFFFFF, compared against the traffic fraction. The digest choice is
// about stability of historical assignments, not cryptography.
func AssignGroup(experimentID, requestName string, trafficFraction float64) string {
	sum := md5.Sum([]byte(experimentID + ":" + requestName))
	bucket := float64(binary.BigEndian.Uint32(sum[:4])) / float64(0xFFFFFFFF)
	if bucket < trafficFraction {
		return types.GroupVariant
	}
	return types.GroupControl
}

// ResolveWeights applies at most one experiment to the tier's weights. The
// first enabled experiment whose tier selector matches assigns the request;
// a variant assignment substitutes the experiment's weights, a control
// assignment keeps the tier's. Returns the effective weights plus the
// assignment record, nil when no experiment matched.
func (r *Registry) ResolveWeights(tierName, requestName string, tierWeights types.Weights) (types.Weights, *types.ExperimentInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, exp := range r.experiments {
		if !exp.Enabled {
			continue
		}
		if exp.Tier != "*" && exp.Tier != tierName {
			continue
		}
		group := AssignGroup(exp.ID, requestName, exp.TrafficFraction)
		info := &types.ExperimentInfo{
			ExperimentID: exp.ID,
			Group:        group,
			Description:  exp.Description,
		}
		if group == types.GroupVariant {
			return exp.VariantWeights.Clone(), info
		}
		return tierWeights, info
	}
	return tierWeights, nil
}

// SetFlag sets a feature flag.
func (r *Registry) SetFlag(name string, value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[name] = value
}

// Flag reads a feature flag; unset flags are false.
func (r *Registry) Flag(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flags[name]
}

// DeleteFlag removes a feature flag.
func (r *Registry) DeleteFlag(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flags, name)
}

// Flags returns a copy of all flags.
func (r *Registry) Flags() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.flags))
	for k, v := range r.flags {
		out[k] = v
	}
	return out
}

// Feature flag names with scheduler-visible behavior.
const (
	FlagPreferCostOptimization      = "prefer_cost_optimization"
	FlagCredentialValidationEnabled = "credential_validation_enabled"
)
