package traffic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

func TestOCIDNSEnsureSwitchStatus(t *testing.T) {
	p := NewOCIDNS()
	ctx := context.Background()

	state, err := p.EnsureRecord(ctx, Record{
		Host:      "orders-db.cell-a.internal",
		Primary:   []string{"orders-db-primary.us-east-1.aws.internal"},
		Secondary: []string{"orders-db-secondary.us-central1.gcp.internal"},
		Policy:    "failover",
	})
	require.NoError(t, err)
	assert.Equal(t, ActivePrimary, state.Active)
	assert.Equal(t, "oci-dns", state.Provider)
	assert.Len(t, state.Primary, 1)

	state, err = p.Switch(ctx, "orders-db.cell-a.internal", DirectionToSecondary,
		map[string]int{"primary": 0, "secondary": 100})
	require.NoError(t, err)
	assert.Equal(t, ActiveSecondary, state.Active)
	assert.Equal(t, 100, state.Weights["secondary"])

	state, err = p.Status(ctx, "orders-db.cell-a.internal")
	require.NoError(t, err)
	assert.Equal(t, ActiveSecondary, state.Active)
	assert.Len(t, state.Secondary, 1)

	state, err = p.Switch(ctx, "orders-db.cell-a.internal", DirectionToPrimary, nil)
	require.NoError(t, err)
	assert.Equal(t, ActivePrimary, state.Active)
}

func TestOCIDNSSwitchWithoutEnsure(t *testing.T) {
	p := NewOCIDNS()

	state, err := p.Switch(context.Background(), "fresh.cell-b.internal", DirectionToSecondary, nil)
	require.NoError(t, err)
	assert.Equal(t, ActiveSecondary, state.Active)
	assert.Empty(t, state.Primary)
}

func TestOCIDNSStatusUnknownHost(t *testing.T) {
	p := NewOCIDNS()

	state, err := p.Status(context.Background(), "nobody.internal")
	require.NoError(t, err)
	assert.Equal(t, ActiveUnknown, state.Active)
}

func TestStubProvidersAcknowledge(t *testing.T) {
	ctx := context.Background()

	for _, p := range []Provider{NewRoute53(), NewCloudflare()} {
		state, err := p.EnsureRecord(ctx, Record{Host: "h.internal"})
		require.NoError(t, err)
		assert.True(t, state.Stub)
		assert.Equal(t, p.Name(), state.Provider)

		state, err = p.Switch(ctx, "h.internal", DirectionToSecondary, nil)
		require.NoError(t, err)
		assert.Equal(t, ActiveSecondary, state.Active)

		state, err = p.Status(ctx, "h.internal")
		require.NoError(t, err)
		assert.Equal(t, ActiveUnknown, state.Active)
	}
}

func TestFactoryResolvesConfiguredProvider(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := NewFactory(store)

	// No config key set: default provider.
	assert.Equal(t, "oci-dns", f.Default().Name())

	require.NoError(t, store.SetConfig(types.ConfigTrafficDefaultProvider, "route53"))
	assert.Equal(t, "route53", f.Default().Name())

	// Unknown names fall back rather than failing the caller.
	assert.Equal(t, "oci-dns", f.Get("akamai").Name())

	// Instances are cached: state written via one lookup is visible in the next.
	ctx := context.Background()
	_, err = f.Get("oci-dns").Switch(ctx, "orders-db.cell-a.internal", DirectionToSecondary, nil)
	require.NoError(t, err)
	state, err := f.Get("oci-dns").Status(ctx, "orders-db.cell-a.internal")
	require.NoError(t, err)
	assert.Equal(t, ActiveSecondary, state.Active)
}

type countingProvider struct {
	Provider
	statusCalls int
}

func (c *countingProvider) Status(ctx context.Context, host string) (*RecordState, error) {
	c.statusCalls++
	return c.Provider.Status(ctx, host)
}

func TestStatusCacheMemoizesLookups(t *testing.T) {
	inner := &countingProvider{Provider: NewOCIDNS()}
	p := WithStatusCache(inner, time.Minute)
	ctx := context.Background()

	_, err := p.EnsureRecord(ctx, Record{Host: "h.internal", Primary: []string{"a"}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		state, err := p.Status(ctx, "h.internal")
		require.NoError(t, err)
		assert.Equal(t, ActivePrimary, state.Active)
	}
	assert.Equal(t, 1, inner.statusCalls)

	// A switch invalidates the cached answer.
	_, err = p.Switch(ctx, "h.internal", DirectionToSecondary, nil)
	require.NoError(t, err)

	state, err := p.Status(ctx, "h.internal")
	require.NoError(t, err)
	assert.Equal(t, ActiveSecondary, state.Active)
	assert.Equal(t, 2, inner.statusCalls)
}
