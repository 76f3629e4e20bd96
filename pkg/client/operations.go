package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cellgrid/strata/pkg/experiment"
	"github.com/cellgrid/strata/pkg/replication"
	"github.com/cellgrid/strata/pkg/scheduler"
	"github.com/cellgrid/strata/pkg/types"
)

// FleetHealth is the per-provider health and circuit breaker view.
type FleetHealth struct {
	Providers       map[string]bool                  `json:"providers"`
	CircuitBreakers map[string]types.BreakerSnapshot `json:"circuit_breakers"`
}

// ProvidersHealth reports health and breaker state across the fleet.
func (c *Client) ProvidersHealth(ctx context.Context) (*FleetHealth, error) {
	var out FleetHealth
	if err := c.get(ctx, "/api/v1/providers/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProviderHealth reports one provider's scheduler view.
func (c *Client) ProviderHealth(ctx context.Context, name string) (*scheduler.ProviderView, error) {
	var out scheduler.ProviderView
	if err := c.get(ctx, "/api/v1/providers/"+url.PathEscape(name)+"/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetProviderHealth marks a provider healthy or unhealthy in the
// scheduler's health registry.
func (c *Client) SetProviderHealth(ctx context.Context, name string, healthy bool, reason string) error {
	body := map[string]interface{}{"healthy": healthy}
	if reason != "" {
		body["reason"] = reason
	}
	return c.put(ctx, "/api/v1/providers/"+url.PathEscape(name)+"/health", body, nil)
}

// Analytics returns the placement scoring snapshot.
func (c *Client) Analytics(ctx context.Context) (*experiment.Snapshot, error) {
	var out experiment.Snapshot
	if err := c.get(ctx, "/api/v1/analytics", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Experiments lists registered scoring experiments.
func (c *Client) Experiments(ctx context.Context) ([]*types.Experiment, error) {
	var out struct {
		Experiments []*types.Experiment `json:"experiments"`
	}
	if err := c.get(ctx, "/api/v1/experiments", &out); err != nil {
		return nil, err
	}
	return out.Experiments, nil
}

// CreateExperiment registers a scoring experiment. An empty Tier targets
// every tier.
func (c *Client) CreateExperiment(ctx context.Context, exp *types.Experiment) (*types.Experiment, error) {
	body := map[string]interface{}{
		"id":                 exp.ID,
		"description":        exp.Description,
		"variant_weights":    exp.VariantWeights,
		"traffic_percentage": exp.TrafficFraction,
	}
	if exp.Tier != "" {
		body["tier"] = exp.Tier
	}
	var out struct {
		Experiment *types.Experiment `json:"experiment"`
	}
	if err := c.post(ctx, "/api/v1/experiments", body, &out); err != nil {
		return nil, err
	}
	return out.Experiment, nil
}

// Experiment fetches one scoring experiment.
func (c *Client) Experiment(ctx context.Context, id string) (*types.Experiment, error) {
	var out struct {
		Experiment *types.Experiment `json:"experiment"`
	}
	if err := c.get(ctx, "/api/v1/experiments/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return out.Experiment, nil
}

// DeleteExperiment removes a scoring experiment.
func (c *Client) DeleteExperiment(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/experiments/"+url.PathEscape(id))
}

// Flags lists feature flags.
func (c *Client) Flags(ctx context.Context) (map[string]bool, error) {
	var out struct {
		Flags map[string]bool `json:"flags"`
	}
	if err := c.get(ctx, "/api/v1/flags", &out); err != nil {
		return nil, err
	}
	return out.Flags, nil
}

// Flag reports one feature flag's state.
func (c *Client) Flag(ctx context.Context, name string) (bool, error) {
	var out struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.get(ctx, "/api/v1/flags/"+url.PathEscape(name), &out); err != nil {
		return false, err
	}
	return out.Enabled, nil
}

// SetFlag sets a feature flag.
func (c *Client) SetFlag(ctx context.Context, name string, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.put(ctx, "/api/v1/flags/"+url.PathEscape(name), body, nil)
}

// DeleteFlag removes a feature flag.
func (c *Client) DeleteFlag(ctx context.Context, name string) error {
	return c.delete(ctx, "/api/v1/flags/"+url.PathEscape(name))
}

// Pairs lists replication pairs.
func (c *Client) Pairs(ctx context.Context) ([]*types.ReplicationPair, error) {
	var out struct {
		Pairs []*types.ReplicationPair `json:"pairs"`
	}
	if err := c.get(ctx, "/api/v1/replication/pairs", &out); err != nil {
		return nil, err
	}
	return out.Pairs, nil
}

// Pair fetches one replication pair.
func (c *Client) Pair(ctx context.Context, id string) (*types.ReplicationPair, error) {
	var out struct {
		Pair *types.ReplicationPair `json:"pair"`
	}
	if err := c.get(ctx, "/api/v1/replication/pairs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return out.Pair, nil
}

// FailoverPair promotes the pair's standby. An aborted run is returned
// as a result, not an error; inspect Status and Errors for the failing
// step.
func (c *Client) FailoverPair(ctx context.Context, id string) (*replication.FailoverResult, error) {
	var out replication.FailoverResult
	err := c.doExpect(ctx, http.MethodPost,
		"/api/v1/replication/pairs/"+url.PathEscape(id)+"/failover",
		nil, &out, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePairLag records a replication lag sample for a pair.
func (c *Client) UpdatePairLag(ctx context.Context, id string, lagMS int64) (*types.ReplicationPair, error) {
	body := map[string]int64{"lag_ms": lagMS}
	var out struct {
		Pair *types.ReplicationPair `json:"pair"`
	}
	if err := c.put(ctx, "/api/v1/replication/pairs/"+url.PathEscape(id)+"/lag", body, &out); err != nil {
		return nil, err
	}
	return out.Pair, nil
}

// ClusterServer is one member of the control plane's Raft cluster.
type ClusterServer struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Leader  bool   `json:"leader"`
}

// ClusterState is cluster membership plus Raft runtime stats.
type ClusterState struct {
	Servers []ClusterServer        `json:"servers"`
	Stats   map[string]interface{} `json:"stats"`
}

// ClusterInfo reports Raft membership and runtime stats.
func (c *Client) ClusterInfo(ctx context.Context) (*ClusterState, error) {
	var out ClusterState
	if err := c.get(ctx, "/api/v1/cluster", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClusterJoin asks the node to add this server as a Raft voter. The
// token must come from ClusterJoinToken on the leader; the route itself
// sits outside the admin gate.
func (c *Client) ClusterJoin(ctx context.Context, nodeID, bindAddr, token string) error {
	body := map[string]string{
		"node_id":   nodeID,
		"bind_addr": bindAddr,
		"token":     token,
	}
	return c.post(ctx, "/api/v1/cluster/join", body, nil)
}
