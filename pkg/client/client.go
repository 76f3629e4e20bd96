package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is a typed HTTP client for a strata control node. Methods mirror
// the API surface one to one. Admin methods require a token matching the
// node's auth.admin_token config entry, set via WithToken.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithToken sets the bearer token sent with every request. Only admin
// routes check it.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each request. The default of 30s leaves room for a
// create that rides the full saga before the server responds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client for the node at baseURL. A bare host:port, as
// listed in a cluster peers config, is promoted to http://host:port.
func New(baseURL string, opts ...Option) *Client {
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response decoded from the API's error envelope.
type APIError struct {
	StatusCode int
	Message    string
	// Details carries the per-field violations of a validation failure.
	Details []string
	// Reason is the refusal kind when the scheduler found no provider.
	Reason string
	// SagaID and Step identify the execution when a create died mid-saga.
	SagaID string
	Step   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is an APIError for a missing entity.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Healthz checks the node's liveness endpoint.
func (c *Client) Healthz(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// Ready checks whether the node is ready to serve.
func (c *Client) Ready(ctx context.Context) error {
	return c.get(ctx, "/ready", nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) put(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	return c.doExpect(ctx, method, path, in, out)
}

// doExpect performs one request and decodes the response into out.
// Statuses outside 2xx come back as an *APIError unless listed in accept:
// a few operations report a domain outcome, such as an aborted pair
// failover or a failed credential validation, with a 422 and a
// result-shaped body.
func (c *Client) doExpect(ctx context.Context, method, path string, in, out interface{}, accept ...int) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, status := range accept {
		ok = ok || resp.StatusCode == status
	}
	if !ok {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var envelope struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
		Reason  string   `json:"reason"`
		SagaID  string   `json:"saga_id"`
		Step    string   `json:"step"`
	}
	_ = json.Unmarshal(raw, &envelope)
	if envelope.Error == "" {
		envelope.Error = strings.TrimSpace(string(raw))
	}
	return &APIError{
		StatusCode: status,
		Message:    envelope.Error,
		Details:    envelope.Details,
		Reason:     envelope.Reason,
		SagaID:     envelope.SagaID,
		Step:       envelope.Step,
	}
}
