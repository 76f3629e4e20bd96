package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cellgrid/strata/pkg/credentials"
	"github.com/cellgrid/strata/pkg/types"
)

// Config lists runtime config entries.
func (c *Client) Config(ctx context.Context) ([]*types.ConfigEntry, error) {
	var out struct {
		Config []*types.ConfigEntry `json:"config"`
	}
	if err := c.get(ctx, "/api/v1/admin/config", &out); err != nil {
		return nil, err
	}
	return out.Config, nil
}

// ConfigValue fetches one config entry.
func (c *Client) ConfigValue(ctx context.Context, key string) (*types.ConfigEntry, error) {
	var out types.ConfigEntry
	if err := c.get(ctx, "/api/v1/admin/config/"+url.PathEscape(key), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetConfig writes a runtime config entry.
func (c *Client) SetConfig(ctx context.Context, key string, value interface{}) error {
	body := map[string]interface{}{"value": value}
	return c.put(ctx, "/api/v1/admin/config/"+url.PathEscape(key), body, nil)
}

// DeleteConfig removes a runtime config entry.
func (c *Client) DeleteConfig(ctx context.Context, key string) error {
	return c.delete(ctx, "/api/v1/admin/config/"+url.PathEscape(key))
}

// Providers lists provider definitions.
func (c *Client) Providers(ctx context.Context) ([]*types.ProviderDefinition, error) {
	var out struct {
		Providers []*types.ProviderDefinition `json:"providers"`
	}
	if err := c.get(ctx, "/api/v1/admin/providers", &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// SaveProvider upserts a provider definition. Omitted fields fall back
// to operational defaults on the server; the stored definition comes
// back.
func (c *Client) SaveProvider(ctx context.Context, def *types.ProviderDefinition) (*types.ProviderDefinition, error) {
	var out struct {
		Provider *types.ProviderDefinition `json:"provider"`
	}
	if err := c.post(ctx, "/api/v1/admin/providers", providerBody(def), &out); err != nil {
		return nil, err
	}
	return out.Provider, nil
}

// UpdateProvider updates the named provider definition.
func (c *Client) UpdateProvider(ctx context.Context, name string, def *types.ProviderDefinition) (*types.ProviderDefinition, error) {
	var out struct {
		Provider *types.ProviderDefinition `json:"provider"`
	}
	if err := c.put(ctx, "/api/v1/admin/providers/"+url.PathEscape(name), providerBody(def), &out); err != nil {
		return nil, err
	}
	return out.Provider, nil
}

func providerBody(def *types.ProviderDefinition) map[string]interface{} {
	body := map[string]interface{}{
		"name":    def.Name,
		"enabled": def.Enabled,
	}
	if def.DisplayName != "" {
		body["display_name"] = def.DisplayName
	}
	if def.CredentialsType != "" {
		body["credentials_type"] = def.CredentialsType
	}
	if def.CredentialsRef != "" {
		body["credentials_ref"] = def.CredentialsRef
	}
	if len(def.Regions) > 0 {
		body["regions"] = def.Regions
	}
	if len(def.Settings) > 0 {
		body["settings"] = def.Settings
	}
	return body
}

// DeleteProvider removes a provider definition.
func (c *Client) DeleteProvider(ctx context.Context, name string) error {
	return c.delete(ctx, "/api/v1/admin/providers/"+url.PathEscape(name))
}

// DRPolicies lists per-tier disaster recovery policies.
func (c *Client) DRPolicies(ctx context.Context) ([]*types.DRPolicy, error) {
	var out struct {
		Policies []*types.DRPolicy `json:"policies"`
	}
	if err := c.get(ctx, "/api/v1/admin/dr-policies", &out); err != nil {
		return nil, err
	}
	return out.Policies, nil
}

// DRPolicy fetches the disaster recovery policy for a tier.
func (c *Client) DRPolicy(ctx context.Context, tier string) (*types.DRPolicy, error) {
	var out struct {
		Policy *types.DRPolicy `json:"policy"`
	}
	if err := c.get(ctx, "/api/v1/admin/dr-policies/"+url.PathEscape(tier), &out); err != nil {
		return nil, err
	}
	return out.Policy, nil
}

// SetDRPolicy writes the disaster recovery policy for policy.Tier. Zero
// RTO and RPO targets are omitted so the server defaults apply.
func (c *Client) SetDRPolicy(ctx context.Context, policy *types.DRPolicy) (*types.DRPolicy, error) {
	body := map[string]interface{}{
		"strategy":           policy.Strategy,
		"failover_providers": policy.FailoverProviders,
		"auto_failover":      policy.AutoFailover,
	}
	if policy.RTOTargetMinutes > 0 {
		body["rto_target_minutes"] = policy.RTOTargetMinutes
	}
	if policy.RPOTargetMinutes > 0 {
		body["rpo_target_minutes"] = policy.RPOTargetMinutes
	}
	if len(policy.Settings) > 0 {
		body["settings"] = policy.Settings
	}
	var out struct {
		Policy *types.DRPolicy `json:"policy"`
	}
	if err := c.put(ctx, "/api/v1/admin/dr-policies/"+url.PathEscape(policy.Tier), body, &out); err != nil {
		return nil, err
	}
	return out.Policy, nil
}

// DeleteDRPolicy removes the disaster recovery policy for a tier.
func (c *Client) DeleteDRPolicy(ctx context.Context, tier string) error {
	return c.delete(ctx, "/api/v1/admin/dr-policies/"+url.PathEscape(tier))
}

// Sagas lists saga executions newest first, optionally filtered by
// state. A zero limit accepts the server default of 50.
func (c *Client) Sagas(ctx context.Context, state string, limit int) ([]*types.SagaExecution, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Sagas []*types.SagaExecution `json:"sagas"`
	}
	if err := c.get(ctx, withQuery("/api/v1/admin/sagas", q), &out); err != nil {
		return nil, err
	}
	return out.Sagas, nil
}

// Saga fetches one saga execution.
func (c *Client) Saga(ctx context.Context, id string) (*types.SagaExecution, error) {
	var out struct {
		Saga *types.SagaExecution `json:"saga"`
	}
	if err := c.get(ctx, "/api/v1/admin/sagas/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return out.Saga, nil
}

// RetrySaga re-runs a failed saga from its failed step.
func (c *Client) RetrySaga(ctx context.Context, id string) (*types.SagaExecution, error) {
	var out struct {
		Saga *types.SagaExecution `json:"saga"`
	}
	if err := c.post(ctx, "/api/v1/admin/sagas/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	return out.Saga, nil
}

// Placements lists placement records newest first. Product and status
// filter when non-empty; a zero limit accepts the server default of 50.
func (c *Client) Placements(ctx context.Context, product, status string, limit int) ([]*types.Placement, error) {
	q := url.Values{}
	if product != "" {
		q.Set("product", product)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Placements []*types.Placement `json:"placements"`
	}
	if err := c.get(ctx, withQuery("/api/v1/admin/placements", q), &out); err != nil {
		return nil, err
	}
	return out.Placements, nil
}

// Placement fetches one placement record.
func (c *Client) Placement(ctx context.Context, id string) (*types.Placement, error) {
	var out struct {
		Placement *types.Placement `json:"placement"`
	}
	if err := c.get(ctx, "/api/v1/admin/placements/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return out.Placement, nil
}

// AuditLog lists audit entries newest first. Action and product filter
// when non-empty; a zero limit accepts the server default of 100.
func (c *Client) AuditLog(ctx context.Context, action, product string, limit int) ([]*types.AuditEntry, error) {
	q := url.Values{}
	if action != "" {
		q.Set("action", action)
	}
	if product != "" {
		q.Set("product", product)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Entries []*types.AuditEntry `json:"entries"`
	}
	if err := c.get(ctx, withQuery("/api/v1/admin/audit-log", q), &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Credentials lists stored credential summaries. Secret material never
// crosses the wire.
func (c *Client) Credentials(ctx context.Context) ([]credentials.Summary, error) {
	var out struct {
		Credentials []credentials.Summary `json:"credentials"`
	}
	if err := c.get(ctx, "/api/v1/admin/credentials", &out); err != nil {
		return nil, err
	}
	return out.Credentials, nil
}

// MaskedCredentials is credential metadata with secret values masked.
type MaskedCredentials struct {
	Provider    string            `json:"provider"`
	Type        string            `json:"cred_type"`
	Validated   bool              `json:"validated"`
	ValidatedAt time.Time         `json:"validated_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Data        map[string]string `json:"cred_data"`
}

// ProviderCredentials fetches masked credentials for a provider.
func (c *Client) ProviderCredentials(ctx context.Context, provider string) (*MaskedCredentials, error) {
	var out struct {
		Credentials *MaskedCredentials `json:"credentials"`
	}
	if err := c.get(ctx, "/api/v1/admin/credentials/"+url.PathEscape(provider), &out); err != nil {
		return nil, err
	}
	return out.Credentials, nil
}

// SaveCredentials stores provider credentials. An empty credType accepts
// the provider's default credential type.
func (c *Client) SaveCredentials(ctx context.Context, provider, credType string, data map[string]string) error {
	body := map[string]interface{}{
		"provider":  provider,
		"cred_data": data,
	}
	if credType != "" {
		body["cred_type"] = credType
	}
	return c.post(ctx, "/api/v1/admin/credentials", body, nil)
}

// DeleteCredentials removes stored credentials for a provider.
func (c *Client) DeleteCredentials(ctx context.Context, provider string) error {
	return c.delete(ctx, "/api/v1/admin/credentials/"+url.PathEscape(provider))
}

// ValidateCredentials runs structural validation on stored credentials.
// A failed validation is returned as a result, not an error; inspect
// Valid and Errors.
func (c *Client) ValidateCredentials(ctx context.Context, provider string) (*credentials.ValidationResult, error) {
	var out credentials.ValidationResult
	err := c.doExpect(ctx, http.MethodPost,
		"/api/v1/admin/credentials/"+url.PathEscape(provider)+"/validate",
		nil, &out, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ClusterJoinToken mints a one-time join token. Must be called on the
// leader; hand the token to the joining node's ClusterJoin.
func (c *Client) ClusterJoinToken(ctx context.Context) (string, error) {
	var out struct {
		JoinToken string `json:"join_token"`
	}
	if err := c.post(ctx, "/api/v1/admin/cluster/join-token", nil, &out); err != nil {
		return "", err
	}
	return out.JoinToken, nil
}

// RemoveClusterServer removes a server from the Raft configuration.
func (c *Client) RemoveClusterServer(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/admin/cluster/servers/"+url.PathEscape(id))
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
