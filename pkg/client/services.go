package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cellgrid/strata/pkg/orchestration"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/types"
)

// ServiceRequest describes a service to place. Placement fields such as
// provider, region, and runtime cluster are deliberately absent: the
// control plane decides those, and the API rejects requests that try to
// smuggle them in. Params carries product parameters (size, version,
// replicas) and is sent flat alongside the named fields.
type ServiceRequest struct {
	Name        string
	Namespace   string
	Cell        string
	Tier        string
	Environment string
	HA          bool
	Params      map[string]interface{}
}

func (r ServiceRequest) body() map[string]interface{} {
	body := make(map[string]interface{}, len(r.Params)+6)
	for key, value := range r.Params {
		body[key] = value
	}
	body["name"] = r.Name
	if r.Namespace != "" {
		body["namespace"] = r.Namespace
	}
	if r.Cell != "" {
		body["cell"] = r.Cell
	}
	if r.Tier != "" {
		body["tier"] = r.Tier
	}
	if r.Environment != "" {
		body["environment"] = r.Environment
	}
	if r.HA {
		body["ha"] = true
	}
	return body
}

// Products lists the product catalog.
func (c *Client) Products(ctx context.Context) ([]*products.Definition, error) {
	var out struct {
		Products []*products.Definition `json:"products"`
	}
	if err := c.get(ctx, "/api/v1/products", &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// CreateService places a service of the named product. When the service
// is already placed the existing placement comes back with Sticky set.
func (c *Client) CreateService(ctx context.Context, product string, req ServiceRequest) (*orchestration.CreateResult, error) {
	var out orchestration.CreateResult
	if err := c.post(ctx, "/api/v1/services/"+url.PathEscape(product), req.body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDatabase places a MySQL instance. Shorthand for
// CreateService with the mysql product.
func (c *Client) CreateDatabase(ctx context.Context, req ServiceRequest) (*orchestration.CreateResult, error) {
	var out orchestration.CreateResult
	if err := c.post(ctx, "/api/v1/databases", req.body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateApp places a web application. Shorthand for CreateService with
// the webapp product.
func (c *Client) CreateApp(ctx context.Context, req ServiceRequest) (*orchestration.CreateResult, error) {
	var out orchestration.CreateResult
	if err := c.post(ctx, "/api/v1/apps", req.body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeployMulticloud places the same service once per target provider.
func (c *Client) DeployMulticloud(ctx context.Context, product string, req ServiceRequest, targetProviders []string) (*orchestration.MulticloudResult, error) {
	body := req.body()
	body["target_providers"] = targetProviders
	var out orchestration.MulticloudResult
	if err := c.post(ctx, "/api/v1/services/"+url.PathEscape(product)+"/multicloud", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SecretRef names the connection secret a placed service publishes.
type SecretRef struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// ServiceState is the live claim for a placed service plus the secret
// holding its connection details.
type ServiceState struct {
	Product          string      `json:"product"`
	Claim            types.Claim `json:"claim"`
	ConnectionSecret SecretRef   `json:"connectionSecret"`
}

// ServiceStatus fetches the live claim for a placed service.
func (c *Client) ServiceStatus(ctx context.Context, product, namespace, name string) (*ServiceState, error) {
	path := fmt.Sprintf("/api/v1/services/%s/%s/%s",
		url.PathEscape(product), url.PathEscape(namespace), url.PathEscape(name))
	var out ServiceState
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FailoverService reschedules a placed service away from its current
// provider. Extra providers to avoid go in exclude.
func (c *Client) FailoverService(ctx context.Context, product, namespace, name string, exclude ...string) (*orchestration.CreateResult, error) {
	return c.failover(ctx, fmt.Sprintf("/api/v1/services/%s/%s/%s/failover",
		url.PathEscape(product), url.PathEscape(namespace), url.PathEscape(name)), exclude)
}

// FailoverDatabase reschedules a MySQL instance away from its current
// provider.
func (c *Client) FailoverDatabase(ctx context.Context, namespace, name string, exclude ...string) (*orchestration.CreateResult, error) {
	return c.failover(ctx, fmt.Sprintf("/api/v1/databases/%s/%s/failover",
		url.PathEscape(namespace), url.PathEscape(name)), exclude)
}

// FailoverApp reschedules a web application away from its current
// provider.
func (c *Client) FailoverApp(ctx context.Context, namespace, name string, exclude ...string) (*orchestration.CreateResult, error) {
	return c.failover(ctx, fmt.Sprintf("/api/v1/apps/%s/%s/failover",
		url.PathEscape(namespace), url.PathEscape(name)), exclude)
}

func (c *Client) failover(ctx context.Context, path string, exclude []string) (*orchestration.CreateResult, error) {
	var body interface{}
	if len(exclude) > 0 {
		body = map[string]interface{}{"exclude_providers": exclude}
	}
	var out orchestration.CreateResult
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
