package storage

import (
	"github.com/cellgrid/strata/pkg/types"
)

// Store defines the interface for control-plane state persistence.
// Implementations must make each call atomic: readers never observe a
// partially written row.
type Store interface {
	// Runtime configuration
	SetConfig(key, value string) error
	GetConfig(key string) (*types.ConfigEntry, error)
	ListConfig() ([]*types.ConfigEntry, error)
	DeleteConfig(key string) error

	// Provider definitions
	CreateProvider(provider *types.ProviderDefinition) error
	GetProvider(name string) (*types.ProviderDefinition, error)
	ListProviders() ([]*types.ProviderDefinition, error)
	UpdateProvider(provider *types.ProviderDefinition) error
	DeleteProvider(name string) error

	// Provider health
	SetProviderHealth(health *types.ProviderHealth) error
	GetProviderHealth(provider string) (*types.ProviderHealth, error)
	ListProviderHealth() ([]*types.ProviderHealth, error)

	// Provider credentials (data is encrypted before it reaches the store)
	SetCredentials(creds *types.ProviderCredentials) error
	GetCredentials(provider string) (*types.ProviderCredentials, error)
	ListCredentials() ([]*types.ProviderCredentials, error)
	DeleteCredentials(provider string) error

	// Placements
	CreatePlacement(placement *types.Placement) error
	GetPlacement(id string) (*types.Placement, error)
	GetPlacementByName(namespace, name string) (*types.Placement, error)
	ListPlacements() ([]*types.Placement, error)
	ListPlacementsByStatus(status types.PlacementStatus) ([]*types.Placement, error)
	ListPlacementsByProduct(product string) ([]*types.Placement, error)
	UpdatePlacement(placement *types.Placement) error
	DeletePlacement(id string) error

	// Saga executions
	CreateSaga(saga *types.SagaExecution) error
	GetSaga(id string) (*types.SagaExecution, error)
	ListSagas() ([]*types.SagaExecution, error)
	ListSagasByState(state types.SagaState) ([]*types.SagaExecution, error)
	UpdateSaga(saga *types.SagaExecution) error

	// Experiments
	CreateExperiment(experiment *types.Experiment) error
	GetExperiment(id string) (*types.Experiment, error)
	ListExperiments() ([]*types.Experiment, error)
	UpdateExperiment(experiment *types.Experiment) error
	DeleteExperiment(id string) error

	// Feature flags
	SetFlag(name string, enabled bool) error
	GetFlag(name string) (bool, error)
	ListFlags() (map[string]bool, error)
	DeleteFlag(name string) error

	// Replication pairs
	CreateReplicationPair(pair *types.ReplicationPair) error
	GetReplicationPair(id string) (*types.ReplicationPair, error)
	GetReplicationPairByName(namespace, name string) (*types.ReplicationPair, error)
	ListReplicationPairs() ([]*types.ReplicationPair, error)
	ListReplicationPairsByCell(cell string) ([]*types.ReplicationPair, error)
	ListReplicationPairsByState(state types.ReplicationState) ([]*types.ReplicationPair, error)
	UpdateReplicationPair(pair *types.ReplicationPair) error
	DeleteReplicationPair(id string) error

	// DR policies
	SetDRPolicy(policy *types.DRPolicy) error
	GetDRPolicy(tier string) (*types.DRPolicy, error)
	ListDRPolicies() ([]*types.DRPolicy, error)
	DeleteDRPolicy(tier string) error

	// Audit log (append-only, monotonic sequence)
	AppendAudit(entry *types.AuditEntry) error
	ListAudit(limit int) ([]*types.AuditEntry, error)

	Close() error
}
