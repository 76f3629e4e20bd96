package provisioner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/types"
)

func testClaim(name string, params map[string]interface{}) types.Claim {
	return types.Claim{
		"apiVersion": "db.platform.example.org/v1alpha1",
		"kind":       "MySQLInstanceClaim",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": "default",
		},
		"spec": map[string]interface{}{
			"parameters": params,
		},
	}
}

func TestApplyAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	claim := testClaim("orders-db", map[string]interface{}{"size": "small"})
	require.NoError(t, m.Apply(ctx, claim))

	got, err := m.Get(ctx, RefFor(claim))
	require.NoError(t, err)
	assert.Equal(t, "MySQLInstanceClaim", got.Kind())

	// Returned claim is a copy, not an alias.
	got["kind"] = "Mutated"
	again, err := m.Get(ctx, RefFor(claim))
	require.NoError(t, err)
	assert.Equal(t, "MySQLInstanceClaim", again.Kind())
}

func TestApplyMergesOverExisting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := testClaim("orders-db", map[string]interface{}{"size": "small", "storageGB": 50})
	require.NoError(t, m.Apply(ctx, first))

	// Second apply changes size only; storageGB must survive the merge.
	second := testClaim("orders-db", map[string]interface{}{"size": "large"})
	require.NoError(t, m.Apply(ctx, second))

	got, err := m.Get(ctx, RefFor(first))
	require.NoError(t, err)
	params := got["spec"].(map[string]interface{})["parameters"].(map[string]interface{})
	assert.Equal(t, "large", params["size"])
	assert.Equal(t, float64(50), params["storageGB"])
	assert.Equal(t, 1, m.Claims())
}

func TestGetMissingClaim(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), Ref{Namespace: "default", Name: "missing"})
	var notFound *types.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestUnavailableMode(t *testing.T) {
	m := NewMemory()
	m.SetUnavailable(true)
	ctx := context.Background()

	claim := testClaim("orders-db", nil)
	assert.ErrorIs(t, m.Apply(ctx, claim), ErrUnavailable)
	_, err := m.Get(ctx, RefFor(claim))
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.Ready(ctx, RefFor(claim))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestReadiness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	claim := testClaim("orders-db", nil)
	ref := RefFor(claim)
	require.NoError(t, m.Apply(ctx, claim))

	ready, err := m.Ready(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ready)

	m.MarkReady(ref)
	ready, err = m.Ready(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ready)

	// autoReady short-circuits
	auto := NewMemory(WithAutoReady())
	require.NoError(t, auto.Apply(ctx, claim))
	ready, err = auto.Ready(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestInjectedApplyError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	boom := errors.New("composition webhook rejected claim")
	m.SetApplyError(boom)
	assert.ErrorIs(t, m.Apply(ctx, testClaim("orders-db", nil)), boom)

	m.SetApplyError(nil)
	assert.NoError(t, m.Apply(ctx, testClaim("orders-db", nil)))
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	claim := testClaim("orders-db", nil)
	ref := RefFor(claim)
	require.NoError(t, m.Apply(ctx, claim))
	require.NoError(t, m.Delete(ctx, ref))
	require.NoError(t, m.Delete(ctx, ref))
	assert.Equal(t, 0, m.Claims())
}
