package orchestration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/types"
)

func webappRequest(name string) *types.CreateRequest {
	return &types.CreateRequest{
		Name:        name,
		Namespace:   "default",
		Cell:        "cell-a",
		Tier:        "medium",
		Environment: "production",
		Parameters:  map[string]interface{}{"image": "nginx:latest"},
	}
}

func TestForceFailoverReschedulesOffPrimary(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)
	ctx := context.Background()

	created, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)
	require.Equal(t, "aws", created.Placement.Provider)

	result, err := orch.ForceFailover(ctx, "mysql", "default", "orders-db", []string{"aws"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailoverComplete, result.Status)
	assert.Equal(t, "aws", result.PreviousProvider)
	require.NotNil(t, result.Placement)
	assert.NotEqual(t, "aws", result.Placement.Provider)
	assert.True(t, result.AppliedToCluster)
	assert.NotEmpty(t, result.SagaID)

	// The claim identity is unchanged: old document replaced, not duplicated.
	assert.Equal(t, 1, prov.Claims())

	def, ok := orch.registry.Get("mysql")
	require.True(t, ok)
	claim, err := prov.Get(ctx, provisioner.Ref{
		APIVersion: def.APIVersion, Kind: def.Kind,
		Namespace: "default", Name: "orders-db",
	})
	require.NoError(t, err)
	provider, _, _ := placementOfClaim(claim)
	assert.Equal(t, result.Placement.Provider, provider)

	// Latest placement row reflects the failover target.
	latest, err := orch.store.GetPlacementByName("default", "orders-db")
	require.NoError(t, err)
	assert.Equal(t, result.Placement.Provider, latest.Provider)
}

// placementOfClaim digs the decided provider/region out of spec.parameters.
func placementOfClaim(claim types.Claim) (provider, region string, ok bool) {
	spec, _ := claim["spec"].(map[string]interface{})
	params, _ := spec["parameters"].(map[string]interface{})
	provider, _ = params["provider"].(string)
	region, _ = params["region"].(string)
	return provider, region, provider != ""
}

func TestForceFailoverMissingClaim(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	_, err := orch.ForceFailover(context.Background(), "mysql", "default", "ghost", nil)
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestForceFailoverAllProvidersExcluded(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)
	ctx := context.Background()

	_, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)

	_, err = orch.ForceFailover(ctx, "mysql", "default", "orders-db", []string{"aws", "gcp", "oci"})
	var serr *types.SchedulingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.EmptyPool, serr.Kind)
}

func TestDeployMulticloudFansOutPerProvider(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	result, err := orch.DeployMulticloud(context.Background(), "webapp",
		webappRequest("web"), []string{"aws", "gcp"})
	require.NoError(t, err)

	assert.Equal(t, StatusMulticloud, result.Status)
	assert.Equal(t, "webapp", result.Product)
	assert.Equal(t, []string{"aws", "gcp"}, result.TargetProviders)
	require.Len(t, result.Deployments, 2)

	for i, provider := range []string{"aws", "gcp"} {
		dep := result.Deployments[i]
		assert.Equal(t, StatusCreated, dep.Status)
		assert.Equal(t, provider, dep.TargetProvider)
		assert.Equal(t, fmt.Sprintf("web-%s", provider), dep.Name)
		require.NotNil(t, dep.Placement)
		assert.Equal(t, provider, dep.Placement.Provider)
	}

	// One claim and one saga per provider.
	assert.Equal(t, 2, prov.Claims())
	sagas, err := orch.store.ListSagas()
	require.NoError(t, err)
	assert.Len(t, sagas, 2)
}

func TestDeployMulticloudSkipsProviderWithoutCandidates(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	result, err := orch.DeployMulticloud(context.Background(), "webapp",
		webappRequest("web"), []string{"azure"})
	require.NoError(t, err)

	require.Len(t, result.Deployments, 1)
	assert.Equal(t, StatusSkipped, result.Deployments[0].Status)
	assert.Equal(t, "azure", result.Deployments[0].Provider)
	assert.Contains(t, result.Deployments[0].Error, "No candidates for provider 'azure'")
}

func TestDeployMulticloudDisabledByConfig(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	require.NoError(t, orch.store.SetConfig(types.ConfigMulticloudEnabled, "false"))

	_, err := orch.DeployMulticloud(context.Background(), "webapp",
		webappRequest("web"), []string{"aws"})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDeployMulticloudUnknownProduct(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	_, err := orch.DeployMulticloud(context.Background(), "ghost",
		webappRequest("web"), []string{"aws"})
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestLookupStickySkippedWhenProvisionerUnavailable(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)
	ctx := context.Background()

	first, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)
	require.Equal(t, StatusCreated, first.Status)

	// With the provisioner gone the sticky check cannot answer; the saga
	// runs again in standalone mode rather than failing the request.
	prov.SetUnavailable(true)
	second, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, second.Status)
	assert.False(t, second.AppliedToCluster)
}
