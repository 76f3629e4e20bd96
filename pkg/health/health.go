package health

import (
	"context"
	"time"
)

// CheckType names the probe mechanism.
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result is the outcome of a single probe.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes one endpoint. Implementations must honor the context and
// never block past their configured timeout.
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}

// Config bounds a probe and its flap damping.
type Config struct {
	// Timeout caps a single probe attempt.
	Timeout time.Duration

	// Retries is the number of consecutive failures before an endpoint is
	// considered down. Single failed probes are treated as blips.
	Retries int
}

// DefaultConfig returns the probe defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
		Retries: 3,
	}
}

// Status accumulates probe results for one endpoint and applies the retry
// threshold, so a transient failure does not flip the endpoint to down.
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result

	// Healthy is the damped verdict: true until Retries consecutive
	// failures, true again after the first success.
	Healthy bool
}

// NewStatus starts an endpoint as healthy until proven otherwise.
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update folds a probe result into the status.
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}
