package traffic

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/log"
)

// OCIDNS is the default traffic provider. It keeps the authoritative routing
// state in process; a production deployment would push the same state to OCI
// DNS traffic-steering policies.
type OCIDNS struct {
	mu      sync.RWMutex
	records map[string]*RecordState
	logger  zerolog.Logger
}

// NewOCIDNS creates the OCI DNS traffic provider.
func NewOCIDNS() *OCIDNS {
	return &OCIDNS{
		records: make(map[string]*RecordState),
		logger:  log.WithComponent("traffic.oci-dns"),
	}
}

func (p *OCIDNS) Name() string { return "oci-dns" }

// EnsureRecord registers the routing entry for a host. Re-ensuring an
// existing host resets it to the declared targets with the primary active.
func (p *OCIDNS) EnsureRecord(ctx context.Context, rec Record) (*RecordState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := &RecordState{
		Host:         rec.Host,
		Provider:     p.Name(),
		Active:       ActivePrimary,
		Primary:      append([]string(nil), rec.Primary...),
		Secondary:    append([]string(nil), rec.Secondary...),
		HealthChecks: append([]string(nil), rec.HealthChecks...),
		Policy:       rec.Policy,
		UpdatedAt:    time.Now().UTC(),
	}
	p.records[rec.Host] = state

	p.logger.Info().Str("host", rec.Host).Str("policy", rec.Policy).
		Int("primary_targets", len(rec.Primary)).
		Int("secondary_targets", len(rec.Secondary)).
		Msg("Routing record ensured")

	return cloneState(state), nil
}

// Switch flips the active side for a host. Switching a host that was never
// ensured creates a bare entry so failover is not blocked on registration
// order.
func (p *OCIDNS) Switch(ctx context.Context, host, direction string, weights map[string]int) (*RecordState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.records[host]
	if !ok {
		state = &RecordState{Host: host, Provider: p.Name()}
		p.records[host] = state
	}
	state.Active = activeFor(direction)
	state.Weights = weights
	state.UpdatedAt = time.Now().UTC()

	p.logger.Info().Str("host", host).Str("direction", direction).
		Str("active", state.Active).Msg("Routing switched")

	return cloneState(state), nil
}

// Status returns the routing state for a host. Unknown hosts report an
// unknown active side rather than an error.
func (p *OCIDNS) Status(ctx context.Context, host string) (*RecordState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.records[host]
	if !ok {
		return &RecordState{Host: host, Provider: p.Name(), Active: ActiveUnknown}, nil
	}
	return cloneState(state), nil
}
