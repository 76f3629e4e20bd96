package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/experiment"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/scheduler"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

func newTestOrchestrator(t *testing.T, prov provisioner.Provisioner, opts ...Option) *Orchestrator {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched := scheduler.New(policy.Default(), scheduler.NewHealthRegistry(),
		experiment.NewRegistry(), experiment.NewAnalytics())

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	return New(store, sched, products.NewRegistry(), prov, broker, opts...)
}

func mysqlRequest(name string) *types.CreateRequest {
	return &types.CreateRequest{
		Name:        name,
		Namespace:   "default",
		Cell:        "cell-a",
		Tier:        "medium",
		Environment: "production",
		Parameters:  map[string]interface{}{"size": "large", "storageGB": 100},
	}
}

func TestCreateServiceCompletesSaga(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	result, err := orch.CreateService(context.Background(), "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, result.Status)
	assert.Equal(t, "mysql", result.Product)
	assert.NotEmpty(t, result.SagaID)
	assert.NotEmpty(t, result.PlacementID)
	assert.True(t, result.AppliedToCluster)

	// Medium tier on the default pool lands on aws/us-east-1.
	require.NotNil(t, result.Placement)
	assert.Equal(t, "aws", result.Placement.Provider)
	assert.Equal(t, "us-east-1", result.Placement.Region)

	require.NotNil(t, result.Saga)
	assert.Equal(t, types.SagaStateCompleted, result.Saga.State)
	assert.Equal(t, types.SagaSteps, result.Saga.StepsCompleted)

	saga, err := orch.store.GetSaga(result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, types.SagaStateCompleted, saga.State)
	assert.Equal(t, result.PlacementID, saga.PlacementID)
	assert.Equal(t, types.StepNotify, saga.CurrentStep)

	placement, err := orch.store.GetPlacement(result.PlacementID)
	require.NoError(t, err)
	assert.Equal(t, types.PlacementReady, placement.Status)
	assert.Equal(t, "mysql", placement.Product)
	assert.InDelta(t, 0.825, placement.TotalScore, 0.0001)

	assert.Equal(t, 1, prov.Claims())
	assert.Equal(t, "MySQLInstanceClaim", result.Claim.Kind())
	assert.Nil(t, result.Failover)
}

func TestCreateServiceStickyReturnsExistingPlacement(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)
	ctx := context.Background()

	first, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)
	require.Equal(t, StatusCreated, first.Status)

	second, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)

	assert.Equal(t, StatusExists, second.Status)
	assert.True(t, second.Sticky)
	assert.Contains(t, second.Message, "sticky")
	require.NotNil(t, second.Placement)
	assert.Equal(t, first.Placement.Provider, second.Placement.Provider)
	assert.Equal(t, first.Placement.RuntimeCluster, second.Placement.RuntimeCluster)
	require.NotNil(t, second.Reason)
	assert.Equal(t, "medium", second.Reason.Tier)

	// The sticky hit starts no saga and registers no placement.
	sagas, err := orch.store.ListSagas()
	require.NoError(t, err)
	assert.Len(t, sagas, 1)
	placements, err := orch.store.ListPlacements()
	require.NoError(t, err)
	assert.Len(t, placements, 1)
}

func TestCreateServiceValidationFailureAggregatesViolations(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	req := &types.CreateRequest{
		Tier:        "gold",
		Environment: "production",
		Parameters:  map[string]interface{}{},
	}
	_, err := orch.CreateService(context.Background(), "mysql", req)
	require.Error(t, err)

	// The saga error wraps the typed validation error so the API can map
	// the failure to a 400 with the full violation list.
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	violations := strings.Join(verr.Violations, "; ")
	assert.Contains(t, violations, "name is required")
	assert.Contains(t, violations, "cell is required")
	assert.Contains(t, violations, "tier must be one of")
	assert.Contains(t, violations, "size is required")
	assert.Contains(t, violations, "storageGB is required")

	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.StepValidate, serr.Step)

	saga, err := orch.store.GetSaga(serr.SagaID)
	require.NoError(t, err)
	assert.Equal(t, types.SagaStateRolledBack, saga.State)
	assert.Equal(t, types.StepValidate, saga.CurrentStep)
	assert.Empty(t, saga.StepsCompleted)

	placements, err := orch.store.ListPlacements()
	require.NoError(t, err)
	assert.Empty(t, placements)
}

func TestCreateServiceUnknownProduct(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	result, err := orch.CreateService(context.Background(), "nonexistent", mysqlRequest("x"))
	assert.Nil(t, result)

	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Resource)
}

func TestSagaApplyFailureRollsBack(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	prov.SetApplyError(errors.New("quota exceeded"))
	orch := newTestOrchestrator(t, prov, WithApplyAttempts(1))

	_, err := orch.CreateService(context.Background(), "mysql", mysqlRequest("orders-db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.StepApplyClaim, serr.Step)

	saga, err := orch.store.GetSaga(serr.SagaID)
	require.NoError(t, err)
	assert.Equal(t, types.SagaStateRolledBack, saga.State)
	assert.Equal(t, []string{types.StepValidate, types.StepSchedule}, saga.StepsCompleted)
	assert.Equal(t, types.StepApplyClaim, saga.CurrentStep)

	// One failure charged against the winner's breaker, still closed.
	breaker := orch.scheduler.Health().Breaker("aws")
	assert.Equal(t, 1, breaker.FailureCount())
	assert.Equal(t, types.BreakerClosed, breaker.State())

	assert.Equal(t, 0, prov.Claims())
	placements, err := orch.store.ListPlacements()
	require.NoError(t, err)
	assert.Empty(t, placements)
}

func TestCreateServiceStandaloneMode(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	prov.SetUnavailable(true)
	orch := newTestOrchestrator(t, prov)

	result, err := orch.CreateService(context.Background(), "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, result.Status)
	assert.False(t, result.AppliedToCluster)
	assert.NotEmpty(t, result.ApplyWarning)
	assert.Equal(t, types.SagaSteps, result.Saga.StepsCompleted)

	placement, err := orch.store.GetPlacement(result.PlacementID)
	require.NoError(t, err)
	assert.Equal(t, types.PlacementProvisioning, placement.Status)

	assert.Equal(t, 0, prov.Claims())
}

func TestCreateServiceCredentialGate(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)
	ctx := context.Background()

	orch.scheduler.Experiments().SetFlag(experiment.FlagCredentialValidationEnabled, true)

	_, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no credentials configured")

	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.StepSchedule, serr.Step)

	// A credential miss never charges the breaker.
	breaker := orch.scheduler.Health().Breaker("aws")
	assert.Equal(t, 0, breaker.FailureCount())
	assert.Equal(t, types.BreakerClosed, breaker.State())

	require.NoError(t, orch.store.SetCredentials(&types.ProviderCredentials{
		Provider:  "aws",
		Type:      "access_key",
		Data:      []byte(`{}`),
		UpdatedAt: time.Now().UTC(),
	}))

	result, err := orch.CreateService(ctx, "mysql", mysqlRequest("billing-db"))
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)
}

func TestSagaCompensationDisabledLeavesFailedState(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	prov.SetApplyError(errors.New("boom"))
	orch := newTestOrchestrator(t, prov, WithApplyAttempts(1))

	require.NoError(t, orch.store.SetConfig(types.ConfigSagaEnabled, "false"))

	_, err := orch.CreateService(context.Background(), "mysql", mysqlRequest("orders-db"))
	require.Error(t, err)

	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)

	saga, err := orch.store.GetSaga(serr.SagaID)
	require.NoError(t, err)
	assert.Equal(t, types.SagaStateFailed, saga.State)
}

func TestSagaWaitReadyTimeoutCompensatesApply(t *testing.T) {
	prov := provisioner.NewMemory() // nothing ever becomes ready
	orch := newTestOrchestrator(t, prov, WithWaitPolicy(2, time.Millisecond))

	_, err := orch.CreateService(context.Background(), "mysql", mysqlRequest("orders-db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")

	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.StepWaitReady, serr.Step)

	saga, err := orch.store.GetSaga(serr.SagaID)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{types.StepValidate, types.StepSchedule, types.StepApplyClaim},
		saga.StepsCompleted)
	assert.Equal(t, types.SagaStateRolledBack, saga.State)

	// Compensation deleted the applied claim; register never ran.
	assert.Equal(t, 0, prov.Claims())
	placements, err := orch.store.ListPlacements()
	require.NoError(t, err)
	assert.Empty(t, placements)
}

func TestSagaCanceledContextFailsCurrentStep(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saga deadline exceeded")

	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.StepValidate, serr.Step)

	saga, err := orch.store.GetSaga(serr.SagaID)
	require.NoError(t, err)
	assert.Equal(t, types.SagaStateRolledBack, saga.State)
}

func TestRetrySagaResetsTerminalRecord(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	prov.SetApplyError(errors.New("boom"))
	orch := newTestOrchestrator(t, prov, WithApplyAttempts(1))
	ctx := context.Background()

	_, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.Error(t, err)
	var serr *types.SagaError
	require.ErrorAs(t, err, &serr)

	saga, err := orch.RetrySaga(serr.SagaID)
	require.NoError(t, err)
	assert.Equal(t, types.SagaStatePending, saga.State)
	assert.Equal(t, types.StepValidate, saga.CurrentStep)
	assert.Empty(t, saga.StepsCompleted)
	assert.Empty(t, saga.Error)

	// Completed sagas are not retryable.
	prov.SetApplyError(nil)
	ok, err := orch.CreateService(ctx, "mysql", mysqlRequest("billing-db"))
	require.NoError(t, err)
	require.Equal(t, StatusCreated, ok.Status)

	_, err = orch.RetrySaga(ok.SagaID)
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreateServiceAuditsOutcome(t *testing.T) {
	prov := provisioner.NewMemory(provisioner.WithAutoReady())
	orch := newTestOrchestrator(t, prov, WithApplyAttempts(1))
	ctx := context.Background()

	_, err := orch.CreateService(ctx, "mysql", mysqlRequest("orders-db"))
	require.NoError(t, err)

	// Failed requests land in the audit log too.
	prov.SetApplyError(errors.New("quota exceeded"))
	_, err = orch.CreateService(ctx, "mysql", mysqlRequest("billing-db"))
	require.Error(t, err)

	entries, err := orch.store.ListAudit(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	outcomes := map[string]string{}
	for _, e := range entries {
		assert.Equal(t, "service.create", e.Action)
		assert.Equal(t, "mysql", e.Product)
		outcomes[e.Name] = e.Outcome
	}
	assert.Equal(t, StatusCreated, outcomes["orders-db"])
	assert.Equal(t, StatusFailed, outcomes["billing-db"])
}
