package traffic

import (
	"context"
	"time"
)

// Routing directions accepted by Switch.
const (
	DirectionToPrimary   = "to_primary"
	DirectionToSecondary = "to_secondary"
)

// Active side values reported in RecordState.
const (
	ActivePrimary   = "primary"
	ActiveSecondary = "secondary"
	ActiveUnknown   = "unknown"
)

// DefaultProviderName is used when the config key is absent or names an
// unknown provider.
const DefaultProviderName = "oci-dns"

// Record declares the desired routing entry for one cell host: the primary
// and secondary target sets plus the balancing policy.
type Record struct {
	Host         string   `json:"host"`
	Primary      []string `json:"primary"`
	Secondary    []string `json:"secondary"`
	HealthChecks []string `json:"health_checks,omitempty"`
	Policy       string   `json:"policy,omitempty"`
}

// RecordState is the provider's view of a routing entry. Active names the
// side currently receiving writes.
type RecordState struct {
	Host         string         `json:"host"`
	Provider     string         `json:"provider"`
	Active       string         `json:"active"`
	Primary      []string       `json:"primary,omitempty"`
	Secondary    []string       `json:"secondary,omitempty"`
	HealthChecks []string       `json:"health_checks,omitempty"`
	Policy       string         `json:"policy,omitempty"`
	Weights      map[string]int `json:"weights,omitempty"`
	Stub         bool           `json:"stub,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Provider manages DNS/GSLB routing entries for cell hosts. Switch flips the
// active side during a failover; Status reports the current routing state.
type Provider interface {
	Name() string
	EnsureRecord(ctx context.Context, rec Record) (*RecordState, error)
	Switch(ctx context.Context, host, direction string, weights map[string]int) (*RecordState, error)
	Status(ctx context.Context, host string) (*RecordState, error)
}

func activeFor(direction string) string {
	if direction == DirectionToSecondary {
		return ActiveSecondary
	}
	return ActivePrimary
}

func cloneState(s *RecordState) *RecordState {
	out := *s
	out.Primary = append([]string(nil), s.Primary...)
	out.Secondary = append([]string(nil), s.Secondary...)
	out.HealthChecks = append([]string(nil), s.HealthChecks...)
	if s.Weights != nil {
		out.Weights = make(map[string]int, len(s.Weights))
		for k, v := range s.Weights {
			out.Weights[k] = v
		}
	}
	return &out
}
