package scheduler

import (
	"sync"
	"time"

	"github.com/cellgrid/strata/pkg/types"
)

// Circuit breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
)

// CircuitBreaker throttles scheduling traffic to a repeatedly failing
// provider. Transitions: a success closes the breaker and zeroes the counter;
// a failure bumps the counter and opens it at the threshold; an open breaker
// admits again (half_open probe) once the cooldown has passed since the last
// failure.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            types.BreakerState
	failureCount     int
	failureThreshold int
	cooldown         time.Duration
	lastFailure      time.Time
	now              func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		state:            types.BreakerClosed,
		failureThreshold: threshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// Allow reports whether a request may proceed. Reading the state performs the
// open → half_open transition once the cooldown has elapsed, so a concurrent
// RecordFailure cannot race the probe admission.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case types.BreakerOpen:
		if b.now().Sub(b.lastFailure) >= b.cooldown {
			b.state = types.BreakerHalfOpen
			return true
		}
		return false
	default:
		// closed and half_open both admit
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = types.BreakerClosed
	b.failureCount = 0
}

// RecordFailure bumps the failure counter and opens the breaker once the
// threshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()
	if b.failureCount >= b.failureThreshold {
		b.state = types.BreakerOpen
	}
}

// State returns the current state, applying the cooldown transition.
func (b *CircuitBreaker) State() types.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == types.BreakerOpen && b.now().Sub(b.lastFailure) >= b.cooldown {
		b.state = types.BreakerHalfOpen
	}
	return b.state
}

// FailureCount returns the current consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Snapshot returns the externally visible breaker view.
func (b *CircuitBreaker) Snapshot() types.BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == types.BreakerOpen && b.now().Sub(b.lastFailure) >= b.cooldown {
		state = types.BreakerHalfOpen
		b.state = state
	}
	return types.BreakerSnapshot{
		State:            state,
		FailureCount:     b.failureCount,
		FailureThreshold: b.failureThreshold,
		CooldownSeconds:  b.cooldown.Seconds(),
	}
}
