package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/health"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/scheduler"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

// Default saga tuning. The server config can override via options.
const (
	DefaultApplyAttempts = 2
	DefaultWaitAttempts  = 5
	DefaultWaitDelay     = 2 * time.Second
	DefaultSagaTimeout   = 300
)

// Orchestrator drives creation requests through the saga lifecycle: sticky
// lookup, the six execution steps, compensation on failure, forced failover
// and multi-cloud fan-out.
type Orchestrator struct {
	store     storage.Store
	scheduler *scheduler.Scheduler
	registry  *products.Registry
	prov      provisioner.Provisioner
	broker    *events.Broker
	pairs     PairEnsurer
	validate  *validator.Validate
	logger    zerolog.Logger

	applyAttempts uint
	waitAttempts  uint
	waitDelay     time.Duration
	readyProbe    ReadinessProbe
}

// PairEnsurer provisions a DR replication pair for a placement whose tier
// demands one. Pair creation rides behind every successful saga and never
// fails the request.
type PairEnsurer interface {
	EnsurePair(ctx context.Context, placement *types.Placement) (*types.ReplicationPair, error)
}

// ReadinessProbe builds an endpoint check for a claim once the provisioner
// reports it ready. A nil probe, or a nil checker for a given ref, skips
// endpoint probing for that claim.
type ReadinessProbe func(ref provisioner.Ref) health.Checker

// Option tunes orchestrator behavior.
type Option func(*Orchestrator)

// WithWaitPolicy bounds the wait_ready polling loop.
func WithWaitPolicy(attempts uint, delay time.Duration) Option {
	return func(o *Orchestrator) {
		o.waitAttempts = attempts
		o.waitDelay = delay
	}
}

// WithApplyAttempts bounds the apply_claim retry loop.
func WithApplyAttempts(attempts uint) Option {
	return func(o *Orchestrator) {
		o.applyAttempts = attempts
	}
}

// WithReplication wires DR pair creation behind successful sagas.
func WithReplication(pairs PairEnsurer) Option {
	return func(o *Orchestrator) {
		o.pairs = pairs
	}
}

// WithReadinessProbe extends wait_ready: the claim must report ready and its
// endpoint must pass the probe, both inside the same wait budget.
func WithReadinessProbe(probe ReadinessProbe) Option {
	return func(o *Orchestrator) {
		o.readyProbe = probe
	}
}

// New creates an orchestrator over the store, scheduler, product registry,
// provisioner and event broker.
func New(store storage.Store, sched *scheduler.Scheduler, registry *products.Registry, prov provisioner.Provisioner, broker *events.Broker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		scheduler:     sched,
		registry:      registry,
		prov:          prov,
		broker:        broker,
		validate:      newValidator(),
		logger:        log.WithComponent("orchestration"),
		applyAttempts: DefaultApplyAttempts,
		waitAttempts:  DefaultWaitAttempts,
		waitDelay:     DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the orchestrator's product registry.
func (o *Orchestrator) Registry() *products.Registry { return o.registry }

// Provisioner returns the orchestrator's provisioner.
func (o *Orchestrator) Provisioner() provisioner.Provisioner { return o.prov }

// CreateService places one product instance. An existing claim with the
// request's identity short-circuits to a sticky result; otherwise a saga
// runs the six-step lifecycle and its outcome is returned.
func (o *Orchestrator) CreateService(ctx context.Context, productName string, req *types.CreateRequest) (*CreateResult, error) {
	def, ok := o.registry.Get(productName)
	if !ok {
		return nil, &types.NotFoundError{Resource: "product", Key: productName}
	}
	if req.Namespace == "" {
		req.Namespace = "default"
	}

	if sticky := o.lookupSticky(ctx, def, req.Namespace, req.Name); sticky != nil {
		return sticky, nil
	}

	result, err := o.runSaga(ctx, def, req, nil, false)
	if result != nil {
		o.audit("service.create", def.Name, req, result)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForceFailover reschedules an existing claim, bypassing stickiness. The
// optional exclusion set removes providers from the candidate pool; the
// existing claim is deleted just before the replacement is applied.
func (o *Orchestrator) ForceFailover(ctx context.Context, productName, namespace, name string, excludeProviders []string) (*CreateResult, error) {
	def, ok := o.registry.Get(productName)
	if !ok {
		return nil, &types.NotFoundError{Resource: "product", Key: productName}
	}
	if namespace == "" {
		namespace = "default"
	}

	ref := provisioner.Ref{APIVersion: def.APIVersion, Kind: def.Kind, Namespace: namespace, Name: name}
	existing, err := o.prov.Get(ctx, ref)
	if err != nil {
		var nf *types.NotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, provisioner.ErrUnavailable) {
			o.logger.Error().Err(err).Str("claim", ref.String()).Msg("Claim lookup failed during failover")
		}
		return nil, &types.NotFoundError{Resource: def.Kind, Key: namespace + "/" + name}
	}

	params := products.SpecParameters(existing)
	previous := stringParam(params, "provider", "unknown")

	excluded := make(map[string]bool, len(excludeProviders))
	for _, p := range excludeProviders {
		excluded[p] = true
	}
	pool := lo.Filter(o.scheduler.Model().Candidates(), func(c *types.Candidate, _ int) bool {
		return !excluded[c.Provider]
	})
	if len(pool) == 0 {
		names := append([]string(nil), excludeProviders...)
		sort.Strings(names)
		return nil, types.NewSchedulingError(types.EmptyPool,
			"no candidates remain after excluding providers: %v", names)
	}

	req := &types.CreateRequest{
		Name:        name,
		Namespace:   namespace,
		Cell:        stringParam(params, "cell", ""),
		Tier:        stringParam(params, "tier", "medium"),
		Environment: stringParam(params, "environment", ""),
		HA:          boolParam(params, "ha"),
		Parameters:  declaredParams(def, params),
	}

	result, err := o.runSaga(ctx, def, req, pool, true)
	if err != nil {
		if result != nil {
			o.audit("service.failover", def.Name, req, result)
		}
		return nil, err
	}
	if result.Status == StatusCreated {
		result.Status = StatusFailoverComplete
		result.PreviousProvider = previous
	}
	o.audit("service.failover", def.Name, req, result)
	return result, nil
}

// DeployMulticloud fans one request out to several providers, one saga per
// provider with a provider-suffixed name. Providers without candidates
// produce skipped entries; the rest run concurrently.
func (o *Orchestrator) DeployMulticloud(ctx context.Context, productName string, req *types.CreateRequest, targetProviders []string) (*MulticloudResult, error) {
	def, ok := o.registry.Get(productName)
	if !ok {
		return nil, &types.NotFoundError{Resource: "product", Key: productName}
	}
	if !o.configBool(types.ConfigMulticloudEnabled, true) {
		return nil, &types.ValidationError{Violations: []string{"multicloud deploy is disabled by configuration"}}
	}
	if len(targetProviders) == 0 {
		return nil, &types.ValidationError{Violations: []string{"target_providers is required"}}
	}
	if req.Namespace == "" {
		req.Namespace = "default"
	}

	results := make([]*CreateResult, len(targetProviders))
	var wg sync.WaitGroup
	for i, provider := range targetProviders {
		pool := lo.Filter(o.scheduler.Model().Candidates(), func(c *types.Candidate, _ int) bool {
			return c.Provider == provider
		})
		if len(pool) == 0 {
			results[i] = &CreateResult{
				Provider: provider,
				Status:   StatusSkipped,
				Error:    fmt.Sprintf("No candidates for provider '%s'", provider),
			}
			continue
		}

		wg.Add(1)
		go func(i int, provider string, pool []*types.Candidate) {
			defer wg.Done()
			sub := *req
			sub.Name = fmt.Sprintf("%s-%s", req.Name, provider)
			result, err := o.runSaga(ctx, def, &sub, pool, false)
			if err != nil && result == nil {
				result = &CreateResult{
					Status:    StatusFailed,
					Product:   def.Name,
					Namespace: sub.Namespace,
					Name:      sub.Name,
					Error:     err.Error(),
				}
			}
			result.TargetProvider = provider
			o.audit("service.multicloud_deploy", def.Name, &sub, result)
			results[i] = result
		}(i, provider, pool)
	}
	wg.Wait()

	return &MulticloudResult{
		Status:          StatusMulticloud,
		Product:         def.Name,
		TargetProviders: targetProviders,
		Deployments:     results,
	}, nil
}

// RetrySaga resets a terminal saga record so the request can be resubmitted.
// Only FAILED and ROLLED_BACK sagas are retryable.
func (o *Orchestrator) RetrySaga(id string) (*types.SagaExecution, error) {
	saga, err := o.store.GetSaga(id)
	if err != nil {
		return nil, err
	}
	if saga.State != types.SagaStateFailed && saga.State != types.SagaStateRolledBack {
		return nil, &types.ConflictError{Message: fmt.Sprintf("cannot retry saga in state '%s'", saga.State)}
	}

	saga.State = types.SagaStatePending
	saga.CurrentStep = types.StepValidate
	saga.StepsCompleted = []string{}
	saga.Error = ""
	saga.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdateSaga(saga); err != nil {
		return nil, err
	}
	return saga, nil
}

// lookupSticky returns the existing placement for the request identity, or
// nil when no claim exists or the provisioner cannot answer.
func (o *Orchestrator) lookupSticky(ctx context.Context, def *products.Definition, namespace, name string) *CreateResult {
	ref := provisioner.Ref{APIVersion: def.APIVersion, Kind: def.Kind, Namespace: namespace, Name: name}
	existing, err := o.prov.Get(ctx, ref)
	if err != nil {
		var nf *types.NotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, provisioner.ErrUnavailable) {
			o.logger.Error().Err(err).Str("claim", ref.String()).Msg("Sticky check failed")
		}
		return nil
	}

	provider, region, reason := products.PlacementFromClaim(existing)
	if provider == "" {
		provider = "unknown"
	}
	if region == "" {
		region = "unknown"
	}
	cluster := "unknown"
	if reason != nil && reason.Selected.RuntimeCluster != "" {
		cluster = reason.Selected.RuntimeCluster
	}

	o.logger.Info().Str("claim", ref.String()).Str("provider", provider).
		Msg("Existing claim found, returning sticky placement")

	return &CreateResult{
		Status:  StatusExists,
		Sticky:  true,
		Product: def.Name,
		Message: "Claim already exists. Returning existing placement (sticky).",
		Placement: &PlacementSummary{
			Provider:       provider,
			Region:         region,
			RuntimeCluster: cluster,
			Network:        networkFromParams(products.SpecParameters(existing)),
		},
		Reason:    reason,
		Namespace: namespace,
		Name:      name,
	}
}

func (o *Orchestrator) audit(action, product string, req *types.CreateRequest, result *CreateResult) {
	detail := map[string]interface{}{}
	if result.SagaID != "" {
		detail["saga_id"] = result.SagaID
	}
	if result.Placement != nil {
		detail["provider"] = result.Placement.Provider
	}
	if result.Error != "" {
		detail["error"] = result.Error
	}
	entry := &types.AuditEntry{
		Timestamp: time.Now().UTC(),
		Actor:     "api",
		Action:    action,
		Product:   product,
		Namespace: req.Namespace,
		Name:      req.Name,
		Outcome:   result.Status,
		Detail:    detail,
	}
	if err := o.store.AppendAudit(entry); err != nil {
		o.logger.Error().Err(err).Str("action", action).Msg("Failed to append audit entry")
	}
}

func (o *Orchestrator) configBool(key string, fallback bool) bool {
	entry, err := o.store.GetConfig(key)
	if err != nil {
		return fallback
	}
	return entry.Value == "true"
}

func (o *Orchestrator) configInt(key string, fallback int) int {
	entry, err := o.store.GetConfig(key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(entry.Value)
	if err != nil {
		return fallback
	}
	return n
}

func stringParam(params map[string]interface{}, key, fallback string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func boolParam(params map[string]interface{}, key string) bool {
	b, _ := params[key].(bool)
	return b
}

// declaredParams extracts the product's declared parameters from a claim's
// spec.parameters, dropping the control-plane decided fields.
func declaredParams(def *products.Definition, specParams map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, p := range def.Parameters {
		if v, ok := specParams[p.Name]; ok {
			out[p.Name] = v
		}
	}
	return out
}

func networkFromParams(params map[string]interface{}) map[string]string {
	out := map[string]string{}
	raw, ok := params["network"].(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
