package traffic

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultStatusTTL bounds how stale a cached Status answer may be.
const DefaultStatusTTL = 30 * time.Second

// cachedProvider memoizes Status lookups. Real steering backends rate-limit
// read APIs, so /healthz and the reconciler share one answer per TTL window.
// Writes through EnsureRecord and Switch invalidate the host's entry.
type cachedProvider struct {
	Provider
	statuses *cache.Cache
}

// WithStatusCache wraps a provider with a TTL cache over Status.
func WithStatusCache(p Provider, ttl time.Duration) Provider {
	return &cachedProvider{
		Provider: p,
		statuses: cache.New(ttl, 2*ttl),
	}
}

func (c *cachedProvider) EnsureRecord(ctx context.Context, rec Record) (*RecordState, error) {
	state, err := c.Provider.EnsureRecord(ctx, rec)
	if err == nil {
		c.statuses.Delete(rec.Host)
	}
	return state, err
}

func (c *cachedProvider) Switch(ctx context.Context, host, direction string, weights map[string]int) (*RecordState, error) {
	state, err := c.Provider.Switch(ctx, host, direction, weights)
	if err == nil {
		c.statuses.Delete(host)
	}
	return state, err
}

func (c *cachedProvider) Status(ctx context.Context, host string) (*RecordState, error) {
	if hit, ok := c.statuses.Get(host); ok {
		return cloneState(hit.(*RecordState)), nil
	}
	state, err := c.Provider.Status(ctx, host)
	if err != nil {
		return nil, err
	}
	c.statuses.Set(host, cloneState(state), cache.DefaultExpiration)
	return state, nil
}
