package provisioner

import (
	"context"
	"encoding/json"
	"sync"

	"dario.cat/mergo"

	"github.com/cellgrid/strata/pkg/types"
)

// Memory is an in-process provisioner used by tests and standalone
// deployments. Apply merges over the stored document the way server-side
// apply would; readiness is driven by MarkReady or the autoReady option.
type Memory struct {
	mu          sync.RWMutex
	claims      map[Ref]types.Claim
	ready       map[Ref]bool
	autoReady   bool
	unavailable bool
	applyErr    error
}

// Option configures a Memory provisioner.
type Option func(*Memory)

// WithAutoReady makes every applied claim immediately ready.
func WithAutoReady() Option {
	return func(m *Memory) { m.autoReady = true }
}

// NewMemory creates an in-memory provisioner.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		claims: make(map[Ref]types.Claim),
		ready:  make(map[Ref]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetUnavailable toggles standalone mode: every call fails with
// ErrUnavailable while set.
func (m *Memory) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = unavailable
}

// SetApplyError forces Apply to fail with err until cleared with nil.
func (m *Memory) SetApplyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErr = err
}

// MarkReady flips a claim's readiness flag.
func (m *Memory) MarkReady(ref Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready[ref] = true
}

// Apply stores the claim, merging over any existing document for the same
// apply identity.
func (m *Memory) Apply(ctx context.Context, claim types.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return ErrUnavailable
	}
	if m.applyErr != nil {
		return m.applyErr
	}

	ref := RefFor(claim)
	incoming, err := copyClaim(claim)
	if err != nil {
		return err
	}

	existing, ok := m.claims[ref]
	if !ok {
		m.claims[ref] = incoming
		return nil
	}

	merged := map[string]interface{}(incoming)
	if err := mergo.Merge(&merged, map[string]interface{}(existing)); err != nil {
		return err
	}
	m.claims[ref] = types.Claim(merged)
	return nil
}

// Get returns a copy of the applied claim, or a NotFoundError.
func (m *Memory) Get(ctx context.Context, ref Ref) (types.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, ErrUnavailable
	}
	claim, ok := m.claims[ref]
	if !ok {
		return nil, &types.NotFoundError{Resource: "claim", Key: ref.Namespace + "/" + ref.Name}
	}
	return copyClaim(claim)
}

// Delete removes the claim. Deleting an absent claim is not an error.
func (m *Memory) Delete(ctx context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return ErrUnavailable
	}
	delete(m.claims, ref)
	delete(m.ready, ref)
	return nil
}

// Ready reports whether the claim's resources are provisioned.
func (m *Memory) Ready(ctx context.Context, ref Ref) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return false, ErrUnavailable
	}
	if _, ok := m.claims[ref]; !ok {
		return false, &types.NotFoundError{Resource: "claim", Key: ref.Namespace + "/" + ref.Name}
	}
	if m.autoReady {
		return true, nil
	}
	return m.ready[ref], nil
}

// Claims returns the number of stored claims.
func (m *Memory) Claims() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.claims)
}

// copyClaim deep-copies a claim so callers never alias stored documents.
func copyClaim(claim types.Claim) (types.Claim, error) {
	data, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}
	var out types.Claim
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
