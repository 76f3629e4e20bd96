package types

import (
	"fmt"
	"strings"
	"time"
)

// Capability is a named platform feature a candidate can offer and a tier can
// require. A candidate missing a required capability is rejected regardless
// of score.
type Capability string

const (
	CapabilityPITR            Capability = "pitr"
	CapabilityMultiAZ         Capability = "multi_az"
	CapabilityPrivateNet      Capability = "private_networking"
	CapabilityCrossRegionRepl Capability = "cross_region_replication"
)

// Scoring dimensions. Weights and candidate scores are keyed by these names;
// unknown dimensions contribute zero to a total score.
const (
	DimensionLatency  = "latency"
	DimensionDR       = "dr"
	DimensionMaturity = "maturity"
	DimensionCost     = "cost"
)

// Dimensions lists the scoring dimensions in canonical order.
var Dimensions = []string{DimensionLatency, DimensionDR, DimensionMaturity, DimensionCost}

// Weights maps scoring dimensions to their relative importance. A valid
// weight set is non-negative and sums to 1.0 within WeightSumTolerance.
type Weights map[string]float64

// WeightSumTolerance is the allowed deviation from 1.0 for a weight sum.
const WeightSumTolerance = 0.01

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// Validate checks the weight-sum invariant.
func (w Weights) Validate() error {
	sum := w.Sum()
	if sum < 1.0-WeightSumTolerance || sum > 1.0+WeightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0 (got %.4f)", sum)
	}
	for dim, v := range w {
		if v < 0 {
			return fmt.Errorf("weight for %s must be non-negative (got %.4f)", dim, v)
		}
	}
	return nil
}

// Clone returns an independent copy of the weight set.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Score applies the weights to a candidate's dimension scores. Missing
// dimensions score zero.
func (w Weights) Score(scores map[string]float64) float64 {
	var total float64
	for dim, weight := range w {
		total += weight * scores[dim]
	}
	return total
}

// Tier is a criticality class. Tiers are immutable after load; the scheduler
// treats them as read-only values.
type Tier struct {
	Name         string       `json:"name" yaml:"name"`
	RTOMinutes   int          `json:"rto_minutes" yaml:"rto_minutes"`
	RPOMinutes   int          `json:"rpo_minutes" yaml:"rpo_minutes"`
	Capabilities []Capability `json:"required_capabilities" yaml:"required_capabilities"`
	Weights      Weights      `json:"weights" yaml:"weights"`
}

// Candidate is a (provider, region, runtime cluster) placement target. The
// Healthy flag is the only field mutated after startup.
type Candidate struct {
	Provider       string             `json:"provider" yaml:"provider"`
	Region         string             `json:"region" yaml:"region"`
	RuntimeCluster string             `json:"runtime_cluster" yaml:"runtime_cluster"`
	Network        map[string]string  `json:"network" yaml:"network"`
	Capabilities   []Capability       `json:"capabilities" yaml:"capabilities"`
	Scores         map[string]float64 `json:"scores" yaml:"scores"`
	Healthy        bool               `json:"healthy" yaml:"healthy"`
}

// HasCapability reports whether the candidate offers the capability.
func (c *Candidate) HasCapability(capability Capability) bool {
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// Key returns the candidate's identity triple as a single string.
func (c *Candidate) Key() string {
	return fmt.Sprintf("%s/%s/%s", c.Provider, c.Region, c.RuntimeCluster)
}

// BreakerState is a circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerSnapshot is the externally visible view of one provider's breaker.
type BreakerSnapshot struct {
	State            BreakerState `json:"state"`
	FailureCount     int          `json:"failure_count"`
	FailureThreshold int          `json:"failure_threshold"`
	CooldownSeconds  float64      `json:"cooldown_seconds"`
}

// ScheduleRequest carries the fields the scheduler needs to place a resource.
// Name doubles as the experiment-bucketing key; it must be stable for the
// lifetime of the resource.
type ScheduleRequest struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	Cell        string `json:"cell"`
	Tier        string `json:"tier"`
	Environment string `json:"environment"`
	HA          bool   `json:"ha"`
}

// CreateRequest is the developer-facing creation payload. Placement fields
// (provider, region, cluster, network) are forbidden; the control plane
// decides them.
type CreateRequest struct {
	Name        string                 `json:"name" validate:"required,dns1123"`
	Namespace   string                 `json:"namespace" validate:"omitempty,dns1123"`
	Cell        string                 `json:"cell" validate:"required"`
	Tier        string                 `json:"tier" validate:"required,oneof=low medium critical business_critical"`
	Environment string                 `json:"environment" validate:"required,oneof=dev staging production"`
	HA          bool                   `json:"ha"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ScheduleRequest derives the scheduler view of the creation payload.
func (r *CreateRequest) ScheduleRequest() ScheduleRequest {
	return ScheduleRequest{
		Name:        r.Name,
		Namespace:   r.Namespace,
		Cell:        r.Cell,
		Tier:        r.Tier,
		Environment: r.Environment,
		HA:          r.HA,
	}
}

// Scorecard is one candidate's gate/score outcome within a decision.
type Scorecard struct {
	Rank           int                `json:"rank,omitempty"`
	Provider       string             `json:"provider"`
	Region         string             `json:"region"`
	RuntimeCluster string             `json:"runtime_cluster"`
	TotalScore     float64            `json:"total_score"`
	Subscores      map[string]float64 `json:"subscores"`
}

// UnhealthySkip records a candidate excluded by the health filter.
type UnhealthySkip struct {
	Provider       string `json:"provider"`
	Region         string `json:"region"`
	RuntimeCluster string `json:"runtime_cluster"`
	Reason         string `json:"reason"`
}

// Skip reasons attached to UnhealthySkip entries.
const (
	SkipProviderUnhealthy = "provider_unhealthy"
	SkipCircuitOpen       = "circuit_open"
)

// ExperimentInfo records which experiment touched a decision and the group
// the request fell into.
type ExperimentInfo struct {
	ExperimentID string `json:"experiment_id"`
	Group        string `json:"group"`
	Description  string `json:"description,omitempty"`
}

// Experiment groups.
const (
	GroupControl = "control"
	GroupVariant = "variant"
)

// FailoverDecision is the cross-cloud standby chosen alongside a primary.
type FailoverDecision struct {
	Provider       string  `json:"provider"`
	Region         string  `json:"region"`
	RuntimeCluster string  `json:"runtime_cluster"`
	TotalScore     float64 `json:"total_score"`
	AntiAffinity   string  `json:"anti_affinity"`
}

// Reason is the auditable record of how a decision was made. It is attached
// to the claim as an annotation and persisted with the placement, so the
// field names are part of the wire contract.
type Reason struct {
	Tier                  string            `json:"tier"`
	RTOMinutes            int               `json:"rto_minutes"`
	RPOMinutes            int               `json:"rpo_minutes"`
	Gates                 []string          `json:"gates"`
	Weights               Weights           `json:"weights"`
	HAEnforced            bool              `json:"ha_enforced"`
	Selected              Scorecard         `json:"selected"`
	TopCandidates         []Scorecard       `json:"top_3_candidates"`
	CandidatesEvaluated   int               `json:"candidates_evaluated"`
	CandidatesHealthy     int               `json:"candidates_healthy"`
	CandidatesPassedGates int               `json:"candidates_passed_gates"`
	UnhealthySkipped      []UnhealthySkip   `json:"unhealthy_skipped,omitempty"`
	Experiment            *ExperimentInfo   `json:"experiment,omitempty"`
	Failover              *FailoverDecision `json:"failover,omitempty"`
}

// Decision is the scheduler's output: the chosen candidate plus the reason
// record and optional failover target. Decisions are immutable.
type Decision struct {
	Provider       string             `json:"provider"`
	Region         string             `json:"region"`
	RuntimeCluster string             `json:"runtime_cluster"`
	Network        map[string]string  `json:"network"`
	TotalScore     float64            `json:"total_score"`
	Subscores      map[string]float64 `json:"subscores"`
	Reason         *Reason            `json:"reason"`
	Failover       *FailoverDecision  `json:"failover,omitempty"`
	Experiment     *ExperimentInfo    `json:"experiment,omitempty"`
}

// SagaState is the lifecycle state of a saga execution.
type SagaState string

const (
	SagaStatePending      SagaState = "PENDING"
	SagaStateRunning      SagaState = "RUNNING"
	SagaStateCompleted    SagaState = "COMPLETED"
	SagaStateFailed       SagaState = "FAILED"
	SagaStateCompensating SagaState = "COMPENSATING"
	SagaStateRolledBack   SagaState = "ROLLED_BACK"
)

// Saga step names, in execution order.
const (
	StepValidate   = "validate"
	StepSchedule   = "schedule"
	StepApplyClaim = "apply_claim"
	StepWaitReady  = "wait_ready"
	StepRegister   = "register"
	StepNotify     = "notify"
)

// SagaSteps is the canonical six-step order. steps_completed of any saga is
// always a prefix of this list.
var SagaSteps = []string{StepValidate, StepSchedule, StepApplyClaim, StepWaitReady, StepRegister, StepNotify}

// SagaExecution is the persisted record of one creation request's lifecycle.
type SagaExecution struct {
	ID             string    `json:"id"`
	Product        string    `json:"product"`
	Name           string    `json:"name"`
	Namespace      string    `json:"namespace"`
	State          SagaState `json:"state"`
	CurrentStep    string    `json:"current_step"`
	StepsCompleted []string  `json:"steps_completed"`
	Error          string    `json:"error,omitempty"`
	PlacementID    string    `json:"placement_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PlacementStatus is the provisioning status of a placement record.
type PlacementStatus string

const (
	PlacementProvisioning PlacementStatus = "PROVISIONING"
	PlacementReady        PlacementStatus = "READY"
	PlacementFailed       PlacementStatus = "FAILED"
)

// Placement is the persisted outcome of a successful decision.
type Placement struct {
	ID             string            `json:"id"`
	Product        string            `json:"product"`
	Name           string            `json:"name"`
	Namespace      string            `json:"namespace"`
	Cell           string            `json:"cell"`
	Tier           string            `json:"tier"`
	Environment    string            `json:"environment"`
	Provider       string            `json:"provider"`
	Region         string            `json:"region"`
	RuntimeCluster string            `json:"runtime_cluster"`
	Network        map[string]string `json:"network,omitempty"`
	HA             bool              `json:"ha"`
	TotalScore     float64           `json:"total_score"`
	Reason         *Reason           `json:"reason,omitempty"`
	Failover       *FailoverDecision `json:"failover,omitempty"`
	Experiment     *ExperimentInfo   `json:"experiment,omitempty"`
	Status         PlacementStatus   `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Experiment is an A/B weight override with deterministic assignment.
type Experiment struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	VariantWeights  Weights   `json:"variant_weights"`
	TrafficFraction float64   `json:"traffic_percentage"`
	Tier            string    `json:"tier"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReplicationState is a replication pair's lifecycle state.
type ReplicationState string

const (
	ReplicationPending               ReplicationState = "PENDING"
	ReplicationProvisioningSecondary ReplicationState = "PROVISIONING_SECONDARY"
	ReplicationConfiguring           ReplicationState = "CONFIGURING"
	ReplicationReplicating           ReplicationState = "REPLICATING"
	ReplicationLagWarning            ReplicationState = "LAG_WARNING"
	ReplicationFailoverInProgress    ReplicationState = "FAILOVER_IN_PROGRESS"
	ReplicationFailedOver            ReplicationState = "FAILED_OVER"
	ReplicationSuspended             ReplicationState = "SUSPENDED"
	ReplicationError                 ReplicationState = "ERROR"
)

// FailoverPhase is the current phase of a pair's failover state machine.
type FailoverPhase string

const (
	PhaseIdle             FailoverPhase = "IDLE"
	PhaseFreezeWrites     FailoverPhase = "FREEZE_WRITES"
	PhaseVerifyLag        FailoverPhase = "VERIFY_LAG"
	PhasePromoteSecondary FailoverPhase = "PROMOTE_SECONDARY"
	PhaseUpdateDNS        FailoverPhase = "UPDATE_DNS"
	PhaseScaleCompute     FailoverPhase = "SCALE_COMPUTE"
	PhaseCompleted        FailoverPhase = "COMPLETED"
	PhaseAborted          FailoverPhase = "ABORTED"
)

// DR strategies.
const (
	StrategyActiveActive  = "active_active"
	StrategyActivePassive = "active_passive"
	StrategyWarmStandby   = "warm_standby"
	StrategyPilotLight    = "pilot_light"
	StrategyBackupRestore = "backup_restore"
)

// ReplicationSide identifies one end of a replication pair.
type ReplicationSide struct {
	Provider       string `json:"provider"`
	Region         string `json:"region"`
	RuntimeCluster string `json:"runtime_cluster"`
	PlacementID    string `json:"placement_id,omitempty"`
}

// ReplicationConfig is the deterministic replication deployment layout
// derived from a pair's identity and RPO target.
type ReplicationConfig struct {
	DeploymentName      string `json:"deployment_name"`
	ExtractName         string `json:"extract_name"`
	ReplicatName        string `json:"replicat_name"`
	TrailName           string `json:"trail_name"`
	SourceEndpoint      string `json:"source_endpoint"`
	TargetEndpoint      string `json:"target_endpoint"`
	SourceConnection    string `json:"source_connection"`
	TargetConnection    string `json:"target_connection"`
	LagAlertThresholdMS int64  `json:"lag_alert_threshold_ms"`
	MonitoringInterval  int    `json:"monitoring_interval_seconds"`
}

// ReplicationPair ties two placements on different providers together with
// RPO/RTO targets and the failover state machine.
type ReplicationPair struct {
	ID               string             `json:"id"`
	Cell             string             `json:"cell"`
	Namespace        string             `json:"namespace"`
	Name             string             `json:"name"`
	Product          string             `json:"product"`
	Tier             string             `json:"tier"`
	Primary          ReplicationSide    `json:"primary"`
	Secondary        ReplicationSide    `json:"secondary"`
	DeploymentName   string             `json:"deployment_name"`
	Config           *ReplicationConfig `json:"config,omitempty"`
	State            ReplicationState   `json:"state"`
	LagMS            int64              `json:"replication_lag_ms"`
	RPOTargetMinutes int                `json:"rpo_target_minutes"`
	RTOTargetMinutes int                `json:"rto_target_minutes"`
	FailoverPhase    FailoverPhase      `json:"failover_phase"`
	DRStrategy       string             `json:"dr_strategy"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// LagWithinRPO reports whether current lag is inside the RPO budget.
func (p *ReplicationPair) LagWithinRPO() bool {
	return p.LagMS <= int64(p.RPOTargetMinutes)*60_000
}

// DRPolicy is the per-tier disaster recovery policy row.
type DRPolicy struct {
	Tier              string                 `json:"tier"`
	Strategy          string                 `json:"strategy"`
	FailoverProviders []string               `json:"failover_providers,omitempty"`
	AutoFailover      bool                   `json:"auto_failover"`
	RTOTargetMinutes  int                    `json:"rto_target_minutes"`
	RPOTargetMinutes  int                    `json:"rpo_target_minutes"`
	Settings          map[string]interface{} `json:"settings,omitempty"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ProviderDefinition is an operator-managed cloud provider row.
type ProviderDefinition struct {
	Name            string                 `json:"name"`
	DisplayName     string                 `json:"display_name"`
	Enabled         bool                   `json:"enabled"`
	CredentialsType string                 `json:"credentials_type,omitempty"`
	CredentialsRef  string                 `json:"credentials_ref,omitempty"`
	Regions         []string               `json:"regions,omitempty"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ProviderHealth is the operator-set health row for one provider.
type ProviderHealth struct {
	Provider  string    `json:"provider"`
	Healthy   bool      `json:"healthy"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderCredentials is a stored credential blob. Data is encrypted at rest;
// it is never returned unmasked by any API.
type ProviderCredentials struct {
	Provider    string    `json:"provider"`
	Type        string    `json:"type"`
	Data        []byte    `json:"data"`
	Validated   bool      `json:"validated"`
	ValidatedAt time.Time `json:"validated_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuditEntry is one row of the monotonic audit log.
type AuditEntry struct {
	Seq       uint64                 `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Product   string                 `json:"product,omitempty"`
	Namespace string                 `json:"namespace,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Outcome   string                 `json:"outcome"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// ConfigEntry is one runtime configuration key-value row.
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Runtime configuration keys seeded at first boot.
const (
	ConfigSagaEnabled            = "saga_enabled"
	ConfigSagaTimeoutSeconds     = "saga_timeout_seconds"
	ConfigMulticloudEnabled      = "multicloud_deploy_enabled"
	ConfigTrafficDefaultProvider = "traffic.default_provider"
	ConfigAuthAdminToken         = "auth.admin_token"
)

// Claim is a declarative resource document handed to the external
// provisioner. The shape is product-driven, so it stays unstructured.
type Claim map[string]interface{}

// APIVersion returns the claim's apiVersion, if set.
func (c Claim) APIVersion() string { s, _ := c["apiVersion"].(string); return s }

// Kind returns the claim's kind, if set.
func (c Claim) Kind() string { s, _ := c["kind"].(string); return s }

// Identity returns the apply identity (apiVersion, kind, namespace, name).
func (c Claim) Identity() (apiVersion, kind, namespace, name string) {
	apiVersion = c.APIVersion()
	kind = c.Kind()
	if meta, ok := c["metadata"].(map[string]interface{}); ok {
		namespace, _ = meta["namespace"].(string)
		name, _ = meta["name"].(string)
	}
	return
}

// SchedulingErrorKind classifies why the scheduler could not place a request.
type SchedulingErrorKind string

const (
	UnknownTier         SchedulingErrorKind = "unknown_tier"
	EmptyPool           SchedulingErrorKind = "empty_pool"
	NoHealthyCandidates SchedulingErrorKind = "no_healthy_candidates"
	NoGatePassers       SchedulingErrorKind = "no_gate_passers"
)

// SchedulingError is a typed scheduler failure. It maps to HTTP 422.
type SchedulingError struct {
	Kind    SchedulingErrorKind
	Message string
}

func (e *SchedulingError) Error() string { return e.Message }

// NewSchedulingError builds a SchedulingError with a formatted message.
func NewSchedulingError(kind SchedulingErrorKind, format string, args ...interface{}) *SchedulingError {
	return &SchedulingError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError aggregates one or more input violations. Maps to HTTP 400.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Violations, "; "))
}

// NotFoundError reports a missing entity. Maps to HTTP 404.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ConflictError reports a forbidden state transition. Maps to HTTP 409.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SagaError is a terminal saga failure carrying the failing step. Maps to
// HTTP 422 with saga detail.
type SagaError struct {
	SagaID string
	Step   string
	Err    error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("saga %s failed at step %s: %v", e.SagaID, e.Step, e.Err)
}

func (e *SagaError) Unwrap() error { return e.Err }
