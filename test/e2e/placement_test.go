package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/client"
	"github.com/cellgrid/strata/pkg/orchestration"
	"github.com/cellgrid/strata/pkg/types"
	"github.com/cellgrid/strata/test/framework"
)

func TestPlacementFollowsTierPolicy(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	result, err := h.Client.CreateDatabase(ctx, mysqlRequest("orders-db"))
	require.NoError(t, err)

	assert.Equal(t, orchestration.StatusCreated, result.Status)
	assert.True(t, result.AppliedToCluster)
	assert.NotEmpty(t, result.PlacementID)

	require.NotNil(t, result.Placement)
	assert.Equal(t, "aws", result.Placement.Provider)
	assert.Equal(t, "us-east-1", result.Placement.Region)
	assert.NotEmpty(t, result.Placement.RuntimeCluster)
	assert.NotEmpty(t, result.Placement.Network)

	require.NotNil(t, result.Reason)
	assert.Equal(t, "medium", result.Reason.Tier)
	assert.Equal(t, 120, result.Reason.RTOMinutes)
	assert.Equal(t, 15, result.Reason.RPOMinutes)
	assert.Equal(t, "aws", result.Reason.Selected.Provider)
	assert.NotEmpty(t, result.Reason.Gates)
	assert.NotEmpty(t, result.Reason.TopCandidates)
	assert.Greater(t, result.Reason.CandidatesEvaluated, 0)
}

func TestRepeatCreateReturnsStickyPlacement(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	first, err := h.Client.CreateDatabase(ctx, mysqlRequest("billing-db"))
	require.NoError(t, err)
	require.Equal(t, orchestration.StatusCreated, first.Status)

	second, err := h.Client.CreateDatabase(ctx, mysqlRequest("billing-db"))
	require.NoError(t, err)
	assert.Equal(t, orchestration.StatusExists, second.Status)
	assert.True(t, second.Sticky)
	require.NotNil(t, second.Placement)
	assert.Equal(t, first.Placement.Provider, second.Placement.Provider)
	assert.Equal(t, first.Placement.Region, second.Placement.Region)

	// The second request never reached the provisioner.
	assert.Equal(t, 1, h.Provisioner.Claims())
}

func TestUnhealthyProviderIsSkipped(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	require.NoError(t, h.Client.SetProviderHealth(ctx, "aws", false, "regional outage"))

	result, err := h.Client.CreateDatabase(ctx, mysqlRequest("inventory-db"))
	require.NoError(t, err)
	require.NotNil(t, result.Placement)
	assert.NotEqual(t, "aws", result.Placement.Provider)
	require.NotNil(t, result.Reason)
	assert.NotEmpty(t, result.Reason.UnhealthySkipped)

	// Restoring health puts the provider back in the pool.
	require.NoError(t, h.Client.SetProviderHealth(ctx, "aws", true, ""))
	restored, err := h.Client.CreateDatabase(ctx, mysqlRequest("catalog-db"))
	require.NoError(t, err)
	assert.Equal(t, "aws", restored.Placement.Provider)
}

func TestAllProvidersUnhealthyRefusesPlacement(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	for _, provider := range h.Model.Providers() {
		require.NoError(t, h.Client.SetProviderHealth(ctx, provider, false, "chaos drill"))
	}

	_, err := h.Client.CreateDatabase(ctx, mysqlRequest("doomed-db"))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, string(types.NoHealthyCandidates), apiErr.Reason)
	assert.Zero(t, h.Provisioner.Claims())
}

func TestPlacementFieldsAreRejected(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	req := mysqlRequest("sneaky-db")
	req.Params["provider"] = "aws"
	req.Params["region"] = "us-east-1"

	_, err := h.Client.CreateDatabase(ctx, req)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Developer contract violation")
	assert.Contains(t, apiErr.Message, "provider, region")
	assert.Zero(t, h.Provisioner.Claims())
}

func TestMulticloudFanout(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	result, err := h.Client.DeployMulticloud(ctx, "webapp", webappRequest("edge-proxy"),
		[]string{"aws", "gcp", "azure"})
	require.NoError(t, err)

	assert.Equal(t, orchestration.StatusMulticloud, result.Status)
	assert.Equal(t, "webapp", result.Product)
	require.Len(t, result.Deployments, 3)

	var created, skipped []string
	for _, dep := range result.Deployments {
		switch dep.Status {
		case orchestration.StatusCreated:
			created = append(created, dep.TargetProvider)
			assert.Equal(t, "edge-proxy-"+dep.TargetProvider, dep.Name)
			require.NotNil(t, dep.Placement)
			assert.Equal(t, dep.TargetProvider, dep.Placement.Provider)
		case orchestration.StatusSkipped:
			skipped = append(skipped, dep.Provider)
			assert.Contains(t, dep.Error, "No candidates")
		default:
			t.Fatalf("unexpected deployment status %q", dep.Status)
		}
	}
	assert.ElementsMatch(t, []string{"aws", "gcp"}, created)
	assert.Equal(t, []string{"azure"}, skipped)
	assert.Equal(t, 2, h.Provisioner.Claims())
}

func TestServiceFailoverMovesProvider(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	created, err := h.Client.CreateDatabase(ctx, mysqlRequest("ledger-db"))
	require.NoError(t, err)
	origin := created.Placement.Provider

	moved, err := h.Client.FailoverDatabase(ctx, "team-a", "ledger-db", origin)
	require.NoError(t, err)
	assert.Equal(t, orchestration.StatusFailoverComplete, moved.Status)
	assert.Equal(t, origin, moved.PreviousProvider)
	require.NotNil(t, moved.Placement)
	assert.NotEqual(t, origin, moved.Placement.Provider)

	// The old claim was replaced, not duplicated.
	assert.Equal(t, 1, h.Provisioner.Claims())

	state, err := h.Client.ServiceStatus(ctx, "mysql", "team-a", "ledger-db")
	require.NoError(t, err)
	assert.Equal(t, "ledger-db-conn", state.ConnectionSecret.Name)
	assert.Equal(t, "team-a", state.ConnectionSecret.Namespace)
}

func TestFailoverExcludingEveryProviderRefuses(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	_, err := h.Client.CreateDatabase(ctx, mysqlRequest("stuck-db"))
	require.NoError(t, err)

	_, err = h.Client.FailoverDatabase(ctx, "team-a", "stuck-db", "aws", "gcp", "oci")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, string(types.EmptyPool), apiErr.Reason)
}

func TestFailoverUnknownServiceIsNotFound(t *testing.T) {
	h := framework.New(t, nil)
	ctx := context.Background()

	_, err := h.Client.FailoverDatabase(ctx, "team-a", "ghost-db")
	assert.True(t, client.IsNotFound(err))
}
