package orchestration

import (
	"github.com/cellgrid/strata/pkg/types"
)

// Outcome status values carried in create, failover and fan-out results.
const (
	StatusCreated          = "created"
	StatusExists           = "exists"
	StatusFailed           = "failed"
	StatusSkipped          = "skipped"
	StatusFailoverComplete = "failover_complete"
	StatusMulticloud       = "multicloud_deploy"
)

// PlacementSummary is the placement block returned to developers. The
// runtimeCluster key is camelCase on the wire.
type PlacementSummary struct {
	Provider       string            `json:"provider"`
	Region         string            `json:"region"`
	RuntimeCluster string            `json:"runtimeCluster"`
	Network        map[string]string `json:"network"`
}

// SagaSummary is the saga block embedded in create results.
type SagaSummary struct {
	StepsCompleted []string        `json:"steps_completed"`
	State          types.SagaState `json:"state"`
	CurrentStep    string          `json:"current_step,omitempty"`
}

// CreateResult is the outcome of one creation, sticky hit or forced
// failover. Status selects which optional blocks are populated.
type CreateResult struct {
	Status           string                  `json:"status"`
	Sticky           bool                    `json:"sticky,omitempty"`
	Product          string                  `json:"product"`
	Message          string                  `json:"message,omitempty"`
	SagaID           string                  `json:"saga_id,omitempty"`
	PlacementID      string                  `json:"placement_id,omitempty"`
	Placement        *PlacementSummary       `json:"placement,omitempty"`
	Reason           *types.Reason           `json:"reason,omitempty"`
	Claim            types.Claim             `json:"claim,omitempty"`
	AppliedToCluster bool                    `json:"applied_to_cluster"`
	Namespace        string                  `json:"namespace,omitempty"`
	Name             string                  `json:"name,omitempty"`
	Saga             *SagaSummary            `json:"saga,omitempty"`
	Failover         *types.FailoverDecision `json:"failover,omitempty"`
	ApplyWarning     string                  `json:"apply_warning,omitempty"`
	Error            string                  `json:"error,omitempty"`
	PreviousProvider string                  `json:"previous_provider,omitempty"`

	// Fan-out bookkeeping. Provider marks skipped entries; TargetProvider
	// tags executed ones.
	Provider       string `json:"provider,omitempty"`
	TargetProvider string `json:"target_provider,omitempty"`
}

// MulticloudResult aggregates the per-provider outcomes of a fan-out deploy.
type MulticloudResult struct {
	Status          string          `json:"status"`
	Product         string          `json:"product"`
	TargetProviders []string        `json:"target_providers"`
	Deployments     []*CreateResult `json:"deployments"`
}
