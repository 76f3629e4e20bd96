package scheduler

import (
	"sync"
	"time"

	"github.com/cellgrid/strata/pkg/types"
)

// HealthRegistry holds the process-wide provider health flags and circuit
// breaker table. It is mutated by operator writes and saga success/failure
// and read on every schedule call, so all access goes through one
// reader-writer lock.
type HealthRegistry struct {
	mu         sync.RWMutex
	providers  map[string]bool
	candidates map[string]bool
	breakers   map[string]*CircuitBreaker
	threshold  int
	cooldown   time.Duration
}

// NewHealthRegistry creates a registry where every provider starts healthy
// with a closed breaker.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		providers:  make(map[string]bool),
		candidates: make(map[string]bool),
		breakers:   make(map[string]*CircuitBreaker),
		threshold:  DefaultFailureThreshold,
		cooldown:   DefaultCooldown,
	}
}

// SetProviderHealth records an operator health decision for a provider.
func (h *HealthRegistry) SetProviderHealth(provider string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providers[provider] = healthy
}

// ProviderHealthy reads the operator flag; providers default to healthy.
func (h *HealthRegistry) ProviderHealthy(provider string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	healthy, ok := h.providers[provider]
	if !ok {
		return true
	}
	return healthy
}

// SetCandidateHealth overrides one candidate's healthy flag at runtime,
// keyed by the candidate's provider/region/cluster triple.
func (h *HealthRegistry) SetCandidateHealth(key string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.candidates[key] = healthy
}

// CandidateHealthy returns the runtime override for a candidate, falling
// back to the pool's static flag when no override is set.
func (h *HealthRegistry) CandidateHealthy(key string, fallback bool) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	healthy, ok := h.candidates[key]
	if !ok {
		return fallback
	}
	return healthy
}

// Breaker returns the provider's circuit breaker, creating it on first use.
func (h *HealthRegistry) Breaker(provider string) *CircuitBreaker {
	h.mu.RLock()
	b, ok := h.breakers[provider]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok = h.breakers[provider]; ok {
		return b
	}
	b = NewCircuitBreaker(h.threshold, h.cooldown)
	h.breakers[provider] = b
	return b
}

// ProviderView is the API-facing health view of one provider.
type ProviderView struct {
	Provider string                `json:"provider"`
	Healthy  bool                  `json:"healthy"`
	Breaker  types.BreakerSnapshot `json:"circuit_breaker"`
}

// View returns the combined operator flag and breaker snapshot for one
// provider.
func (h *HealthRegistry) View(provider string) ProviderView {
	return ProviderView{
		Provider: provider,
		Healthy:  h.ProviderHealthy(provider),
		Breaker:  h.Breaker(provider).Snapshot(),
	}
}

// Views returns the health view for each named provider.
func (h *HealthRegistry) Views(providers []string) []ProviderView {
	out := make([]ProviderView, 0, len(providers))
	for _, p := range providers {
		out = append(out, h.View(p))
	}
	return out
}
