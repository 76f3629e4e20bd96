package traffic

import (
	"context"
	"time"
)

// stub acknowledges every call without keeping state. Route53 and Cloudflare
// integrations plug in here once their steering APIs are wired.
type stub struct {
	name string
}

// NewRoute53 creates the AWS Route53 stub provider.
func NewRoute53() Provider { return &stub{name: "route53"} }

// NewCloudflare creates the Cloudflare stub provider.
func NewCloudflare() Provider { return &stub{name: "cloudflare"} }

func (s *stub) Name() string { return s.name }

func (s *stub) EnsureRecord(ctx context.Context, rec Record) (*RecordState, error) {
	return &RecordState{
		Host:      rec.Host,
		Provider:  s.name,
		Active:    ActivePrimary,
		Policy:    rec.Policy,
		Stub:      true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *stub) Switch(ctx context.Context, host, direction string, weights map[string]int) (*RecordState, error) {
	return &RecordState{
		Host:      host,
		Provider:  s.name,
		Active:    activeFor(direction),
		Weights:   weights,
		Stub:      true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *stub) Status(ctx context.Context, host string) (*RecordState, error) {
	return &RecordState{Host: host, Provider: s.name, Active: ActiveUnknown, Stub: true}, nil
}
