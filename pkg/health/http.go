package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP endpoint and judges health from the status
// code. Used as a readiness gate on provisioned endpoints that expose a
// health URL.
type HTTPChecker struct {
	// URL is the full endpoint, e.g. "http://orders-api.default.svc/healthz".
	URL string

	// Method defaults to GET.
	Method string

	// Headers are added to every probe request.
	Headers map[string]string

	// StatusMin and StatusMax bound the healthy status range, inclusive.
	StatusMin int
	StatusMax int

	// Client performs the request; replace it to tune TLS or transport.
	Client *http.Client
}

// NewHTTPChecker creates an HTTP checker accepting any non-error status.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:       url,
		Method:    http.MethodGet,
		Headers:   make(map[string]string),
		StatusMin: 200,
		StatusMax: 399,
		Client:    &http.Client{Timeout: DefaultConfig().Timeout},
	}
}

// Check performs one probe request.
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("build request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("probe %s: %v", h.URL, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= h.StatusMin && resp.StatusCode <= h.StatusMax
	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (want %d-%d)", message, h.StatusMin, h.StatusMax)
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the check type.
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithMethod overrides the request method.
func (h *HTTPChecker) WithMethod(method string) *HTTPChecker {
	h.Method = method
	return h
}

// WithHeader adds a request header, e.g. an auth bearer.
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithStatusRange narrows the healthy status range.
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.StatusMin = min
	h.StatusMax = max
	return h
}

// WithTimeout overrides the request timeout.
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
