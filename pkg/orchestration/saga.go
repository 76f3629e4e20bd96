package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/experiment"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/types"
)

// runSaga creates the saga record and executes the six-step lifecycle under
// the configured deadline. pool restricts scheduling to a candidate subset;
// replace deletes the existing claim just before the new one is applied.
func (o *Orchestrator) runSaga(ctx context.Context, def *products.Definition, req *types.CreateRequest, pool []*types.Candidate, replace bool) (*CreateResult, error) {
	now := time.Now().UTC()
	record := &types.SagaExecution{
		ID:             uuid.New().String(),
		Product:        def.Name,
		Name:           req.Name,
		Namespace:      req.Namespace,
		State:          types.SagaStatePending,
		StepsCompleted: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.CreateSaga(record); err != nil {
		return nil, fmt.Errorf("failed to create saga record: %w", err)
	}

	if timeout := o.configInt(types.ConfigSagaTimeoutSeconds, DefaultSagaTimeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	run := &sagaRun{
		o:       o,
		def:     def,
		req:     req,
		record:  record,
		pool:    pool,
		replace: replace,
		logger:  log.WithSagaID(record.ID),
	}
	return run.execute(ctx)
}

// sagaRun carries the mutable state of one saga execution.
type sagaRun struct {
	o       *Orchestrator
	def     *products.Definition
	req     *types.CreateRequest
	record  *types.SagaExecution
	pool    []*types.Candidate
	replace bool
	logger  zerolog.Logger

	decision     *types.Decision
	claim        types.Claim
	placement    *types.Placement
	placementID  string
	applied      bool
	applyWarning string
}

type sagaStep struct {
	name string
	run  func(context.Context) error
}

func (r *sagaRun) steps() []sagaStep {
	return []sagaStep{
		{types.StepValidate, r.stepValidate},
		{types.StepSchedule, r.stepSchedule},
		{types.StepApplyClaim, r.stepApplyClaim},
		{types.StepWaitReady, r.stepWaitReady},
		{types.StepRegister, r.stepRegister},
		{types.StepNotify, r.stepNotify},
	}
}

// execute runs the steps in order, persisting the record around each one.
// Any step failure marks the saga FAILED and, when sagas are enabled,
// compensates the completed steps in reverse. Failures return both the
// typed saga error, so callers can map the taxonomy, and the failed
// result, so fan-out callers can aggregate and audit it.
func (r *sagaRun) execute(ctx context.Context) (*CreateResult, error) {
	compensate := r.o.configBool(types.ConfigSagaEnabled, true)

	r.record.State = types.SagaStateRunning
	r.persist()

	for _, step := range r.steps() {
		r.record.CurrentStep = step.name
		r.persist()

		err := ctx.Err()
		if err != nil {
			err = fmt.Errorf("saga deadline exceeded: %w", err)
		} else {
			err = step.run(ctx)
		}
		if err != nil {
			serr := &types.SagaError{SagaID: r.record.ID, Step: step.name, Err: err}
			r.logger.Error().Err(err).Str("step", step.name).Msg("Saga step failed")

			r.record.State = types.SagaStateFailed
			r.record.Error = err.Error()
			r.persist()

			r.publish(events.EventPlacementFailed,
				fmt.Sprintf("Saga %s failed at step %s", r.record.ID, step.name))

			if compensate {
				r.compensate(ctx)
			}
			return r.errorResult(serr), serr
		}

		r.record.StepsCompleted = append(r.record.StepsCompleted, step.name)
		r.persist()
	}

	r.record.State = types.SagaStateCompleted
	r.record.PlacementID = r.placementID
	r.persist()

	r.publish(events.EventSagaCompleted,
		fmt.Sprintf("Saga %s completed for %s/%s", r.record.ID, r.req.Namespace, r.req.Name))

	r.ensurePair(ctx)
	return r.successResult(), nil
}

// ensurePair provisions the tier's DR pair behind a successful run. Pair
// creation is best effort: failures are logged, never surfaced.
func (r *sagaRun) ensurePair(ctx context.Context) {
	if r.o.pairs == nil || r.placement == nil {
		return
	}
	if _, err := r.o.pairs.EnsurePair(ctx, r.placement); err != nil {
		r.logger.Warn().Err(err).Msg("Could not ensure replication pair")
	}
}

// stepValidate checks the common request fields and the product-specific
// parameters, aggregating every violation into one error.
func (r *sagaRun) stepValidate(ctx context.Context) error {
	var merr *multierror.Error
	for _, msg := range commonFieldViolations(r.o.validate.Struct(r.req)) {
		merr = multierror.Append(merr, errors.New(msg))
	}
	for _, msg := range products.ValidateParams(r.def, r.req.Parameters) {
		merr = multierror.Append(merr, errors.New(msg))
	}
	if merr.ErrorOrNil() == nil {
		return nil
	}

	violations := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		violations = append(violations, err.Error())
	}
	return &types.ValidationError{Violations: violations}
}

// stepSchedule obtains a placement decision and, when credential validation
// is enabled, confirms the winner has stored credentials. A missing
// credential is a validation failure and never counts against the breaker.
func (r *sagaRun) stepSchedule(ctx context.Context) error {
	var decision *types.Decision
	var err error
	if r.pool != nil {
		decision, err = r.o.scheduler.ScheduleAmong(r.req.ScheduleRequest(), r.pool)
	} else {
		decision, err = r.o.scheduler.Schedule(r.req.ScheduleRequest())
	}
	if err != nil {
		return err
	}
	r.decision = decision

	if r.o.scheduler.Experiments().Flag(experiment.FlagCredentialValidationEnabled) {
		if _, err := r.o.store.GetCredentials(decision.Provider); err != nil {
			var nf *types.NotFoundError
			if errors.As(err, &nf) {
				return fmt.Errorf("provider '%s' has no credentials configured: set credentials before provisioning", decision.Provider)
			}
			return fmt.Errorf("credential lookup for %s: %w", decision.Provider, err)
		}
	}

	r.o.scheduler.RecordSuccess(decision.Provider)
	return nil
}

// stepApplyClaim builds the claim and hands it to the provisioner. An
// unavailable provisioner is standalone mode: the saga advances with
// applied=false. Any other apply error charges the winner's breaker.
func (r *sagaRun) stepApplyClaim(ctx context.Context) error {
	claim, err := products.BuildClaim(r.def, r.req, r.decision)
	if err != nil {
		return err
	}
	r.claim = claim

	if r.replace {
		if err := r.o.prov.Delete(ctx, provisioner.RefFor(claim)); err != nil {
			r.logger.Warn().Err(err).Msg("Could not delete existing claim before reapply")
		}
	}

	err = retry.Do(
		func() error { return r.o.prov.Apply(ctx, claim) },
		retry.Context(ctx),
		retry.Attempts(r.o.applyAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, provisioner.ErrUnavailable) }),
		retry.LastErrorOnly(true),
	)
	switch {
	case err == nil:
		r.applied = true
	case errors.Is(err, provisioner.ErrUnavailable):
		r.applied = false
		r.applyWarning = err.Error()
		r.logger.Warn().Err(err).Msg("Claim built but not applied, provisioner unavailable")
	default:
		r.o.scheduler.RecordFailure(r.decision.Provider)
		return fmt.Errorf("apply claim: %w", err)
	}
	return nil
}

// stepWaitReady polls the provisioner readiness predicate with bounded
// retries, then the endpoint probe when one is configured. Standalone runs
// pass immediately.
func (r *sagaRun) stepWaitReady(ctx context.Context) error {
	if !r.applied {
		return nil
	}
	ref := provisioner.RefFor(r.claim)
	return retry.Do(
		func() error {
			ready, err := r.o.prov.Ready(ctx, ref)
			if err != nil {
				return err
			}
			if !ready {
				return fmt.Errorf("claim %s is not ready", ref)
			}
			if r.o.readyProbe != nil {
				if checker := r.o.readyProbe(ref); checker != nil {
					if res := checker.Check(ctx); !res.Healthy {
						return fmt.Errorf("claim %s endpoint unhealthy: %s", ref, res.Message)
					}
				}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.o.waitAttempts),
		retry.Delay(r.o.waitDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// stepRegister inserts the placement record and binds its id into the saga.
func (r *sagaRun) stepRegister(ctx context.Context) error {
	now := time.Now().UTC()
	status := types.PlacementProvisioning
	if r.applied {
		status = types.PlacementReady
	}

	rec := &types.Placement{
		ID:             uuid.New().String(),
		Product:        r.def.Name,
		Name:           r.req.Name,
		Namespace:      r.req.Namespace,
		Cell:           r.req.Cell,
		Tier:           r.req.Tier,
		Environment:    r.req.Environment,
		Provider:       r.decision.Provider,
		Region:         r.decision.Region,
		RuntimeCluster: r.decision.RuntimeCluster,
		Network:        r.decision.Network,
		HA:             r.req.HA,
		TotalScore:     r.decision.TotalScore,
		Reason:         r.decision.Reason,
		Failover:       r.decision.Failover,
		Experiment:     r.decision.Experiment,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.o.store.CreatePlacement(rec); err != nil {
		return fmt.Errorf("register placement: %w", err)
	}

	r.placement = rec
	r.placementID = rec.ID
	r.record.PlacementID = rec.ID
	r.persist()
	return nil
}

func (r *sagaRun) stepNotify(ctx context.Context) error {
	r.logger.Info().
		Str("product", r.def.Name).
		Str("namespace", r.req.Namespace).
		Str("name", r.req.Name).
		Str("provider", r.decision.Provider).
		Str("region", r.decision.Region).
		Str("placement_id", r.placementID).
		Bool("applied", r.applied).
		Msg("Saga completed")

	r.publish(events.EventPlacementCreated,
		fmt.Sprintf("Placement for %s/%s on %s/%s", r.req.Namespace, r.req.Name, r.decision.Provider, r.decision.Region))
	return nil
}

// compensate walks the completed steps in reverse. Compensator errors are
// logged and never raised; the saga always lands on ROLLED_BACK.
func (r *sagaRun) compensate(ctx context.Context) {
	r.record.State = types.SagaStateCompensating
	r.persist()

	for i := len(r.record.StepsCompleted) - 1; i >= 0; i-- {
		switch r.record.StepsCompleted[i] {
		case types.StepApplyClaim:
			r.compensateApplyClaim(ctx)
		case types.StepRegister:
			r.compensateRegister()
		}
	}

	r.record.State = types.SagaStateRolledBack
	r.persist()

	r.publish(events.EventSagaRolledBack,
		fmt.Sprintf("Saga %s rolled back", r.record.ID))
}

func (r *sagaRun) compensateApplyClaim(ctx context.Context) {
	if !r.applied || r.claim == nil {
		return
	}
	if err := r.o.prov.Delete(ctx, provisioner.RefFor(r.claim)); err != nil {
		r.logger.Warn().Err(err).Msg("Could not delete claim during compensation")
	}
}

func (r *sagaRun) compensateRegister() {
	if r.placementID == "" {
		return
	}
	rec, err := r.o.store.GetPlacement(r.placementID)
	if err != nil {
		r.logger.Warn().Err(err).Str("placement_id", r.placementID).Msg("Could not load placement during compensation")
		return
	}
	rec.Status = types.PlacementFailed
	rec.UpdatedAt = time.Now().UTC()
	if err := r.o.store.UpdatePlacement(rec); err != nil {
		r.logger.Warn().Err(err).Str("placement_id", r.placementID).Msg("Could not mark placement failed during compensation")
	}
}

func (r *sagaRun) persist() {
	r.record.UpdatedAt = time.Now().UTC()
	if err := r.o.store.UpdateSaga(r.record); err != nil {
		r.logger.Error().Err(err).Msg("Failed to persist saga record")
	}
}

func (r *sagaRun) publish(eventType events.EventType, message string) {
	r.o.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Message: message,
		Metadata: map[string]string{
			"saga_id":   r.record.ID,
			"product":   r.def.Name,
			"namespace": r.req.Namespace,
			"name":      r.req.Name,
		},
	})
}

func (r *sagaRun) successResult() *CreateResult {
	return &CreateResult{
		Status:      StatusCreated,
		Product:     r.def.Name,
		SagaID:      r.record.ID,
		PlacementID: r.placementID,
		Placement: &PlacementSummary{
			Provider:       r.decision.Provider,
			Region:         r.decision.Region,
			RuntimeCluster: r.decision.RuntimeCluster,
			Network:        r.decision.Network,
		},
		Reason:           r.decision.Reason,
		Claim:            r.claim,
		AppliedToCluster: r.applied,
		Namespace:        r.req.Namespace,
		Name:             r.req.Name,
		Saga: &SagaSummary{
			StepsCompleted: r.record.StepsCompleted,
			State:          r.record.State,
		},
		Failover:     r.decision.Failover,
		ApplyWarning: r.applyWarning,
	}
}

func (r *sagaRun) errorResult(serr *types.SagaError) *CreateResult {
	return &CreateResult{
		Status:    StatusFailed,
		Product:   r.def.Name,
		SagaID:    r.record.ID,
		Namespace: r.req.Namespace,
		Name:      r.req.Name,
		Error:     serr.Err.Error(),
		Saga: &SagaSummary{
			StepsCompleted: r.record.StepsCompleted,
			State:          r.record.State,
			CurrentStep:    r.record.CurrentStep,
		},
	}
}
