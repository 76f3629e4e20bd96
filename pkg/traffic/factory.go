package traffic

import (
	"sync"

	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

// Factory hands out traffic providers by name. Instances are cached so the
// stateful providers keep their routing tables across lookups.
type Factory struct {
	store storage.Store

	mu        sync.Mutex
	providers map[string]Provider
}

// NewFactory creates a provider factory backed by the runtime config store.
func NewFactory(store storage.Store) *Factory {
	return &Factory{
		store:     store,
		providers: make(map[string]Provider),
	}
}

// Default returns the provider named by the traffic.default_provider config
// key, falling back to oci-dns when the key is absent.
func (f *Factory) Default() Provider {
	name := DefaultProviderName
	if entry, err := f.store.GetConfig(types.ConfigTrafficDefaultProvider); err == nil && entry.Value != "" {
		name = entry.Value
	}
	return f.Get(name)
}

// Get returns the named provider, constructing it on first use. Unknown
// names fall back to the default provider.
func (f *Factory) Get(name string) Provider {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[name]; ok {
		return p
	}

	var p Provider
	switch name {
	case "oci-dns":
		p = NewOCIDNS()
	case "route53":
		p = NewRoute53()
	case "cloudflare":
		p = NewCloudflare()
	default:
		name = DefaultProviderName
		if existing, ok := f.providers[name]; ok {
			return existing
		}
		p = NewOCIDNS()
	}

	p = WithStatusCache(p, DefaultStatusTTL)
	f.providers[name] = p
	return p
}
