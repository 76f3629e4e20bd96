package manager

import (
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

// ReplicatedStore is the storage.Store handed to the rest of the control
// plane in HA mode. Writes travel through the Raft log so every node applies
// them in the same order; reads come from the local store without a quorum
// round-trip. Followers can trail the leader by an apply, which the API
// tolerates because all writes land on the leader anyway.
type ReplicatedStore struct {
	m *Manager
}

var _ storage.Store = (*ReplicatedStore)(nil)

func (s *ReplicatedStore) SetConfig(key, value string) error {
	return s.m.apply(opSetConfig, kvEntry{Key: key, Value: value})
}

func (s *ReplicatedStore) GetConfig(key string) (*types.ConfigEntry, error) {
	return s.m.store.GetConfig(key)
}

func (s *ReplicatedStore) ListConfig() ([]*types.ConfigEntry, error) {
	return s.m.store.ListConfig()
}

func (s *ReplicatedStore) DeleteConfig(key string) error {
	return s.m.apply(opDeleteConfig, key)
}

func (s *ReplicatedStore) CreateProvider(provider *types.ProviderDefinition) error {
	return s.m.apply(opCreateProvider, provider)
}

func (s *ReplicatedStore) GetProvider(name string) (*types.ProviderDefinition, error) {
	return s.m.store.GetProvider(name)
}

func (s *ReplicatedStore) ListProviders() ([]*types.ProviderDefinition, error) {
	return s.m.store.ListProviders()
}

func (s *ReplicatedStore) UpdateProvider(provider *types.ProviderDefinition) error {
	return s.m.apply(opUpdateProvider, provider)
}

func (s *ReplicatedStore) DeleteProvider(name string) error {
	return s.m.apply(opDeleteProvider, name)
}

func (s *ReplicatedStore) SetProviderHealth(health *types.ProviderHealth) error {
	return s.m.apply(opSetProviderHealth, health)
}

func (s *ReplicatedStore) GetProviderHealth(provider string) (*types.ProviderHealth, error) {
	return s.m.store.GetProviderHealth(provider)
}

func (s *ReplicatedStore) ListProviderHealth() ([]*types.ProviderHealth, error) {
	return s.m.store.ListProviderHealth()
}

func (s *ReplicatedStore) SetCredentials(creds *types.ProviderCredentials) error {
	return s.m.apply(opSetCredentials, creds)
}

func (s *ReplicatedStore) GetCredentials(provider string) (*types.ProviderCredentials, error) {
	return s.m.store.GetCredentials(provider)
}

func (s *ReplicatedStore) ListCredentials() ([]*types.ProviderCredentials, error) {
	return s.m.store.ListCredentials()
}

func (s *ReplicatedStore) DeleteCredentials(provider string) error {
	return s.m.apply(opDeleteCredentials, provider)
}

func (s *ReplicatedStore) CreatePlacement(placement *types.Placement) error {
	return s.m.apply(opCreatePlacement, placement)
}

func (s *ReplicatedStore) GetPlacement(id string) (*types.Placement, error) {
	return s.m.store.GetPlacement(id)
}

func (s *ReplicatedStore) GetPlacementByName(namespace, name string) (*types.Placement, error) {
	return s.m.store.GetPlacementByName(namespace, name)
}

func (s *ReplicatedStore) ListPlacements() ([]*types.Placement, error) {
	return s.m.store.ListPlacements()
}

func (s *ReplicatedStore) ListPlacementsByStatus(status types.PlacementStatus) ([]*types.Placement, error) {
	return s.m.store.ListPlacementsByStatus(status)
}

func (s *ReplicatedStore) ListPlacementsByProduct(product string) ([]*types.Placement, error) {
	return s.m.store.ListPlacementsByProduct(product)
}

func (s *ReplicatedStore) UpdatePlacement(placement *types.Placement) error {
	return s.m.apply(opUpdatePlacement, placement)
}

func (s *ReplicatedStore) DeletePlacement(id string) error {
	return s.m.apply(opDeletePlacement, id)
}

func (s *ReplicatedStore) CreateSaga(saga *types.SagaExecution) error {
	return s.m.apply(opCreateSaga, saga)
}

func (s *ReplicatedStore) GetSaga(id string) (*types.SagaExecution, error) {
	return s.m.store.GetSaga(id)
}

func (s *ReplicatedStore) ListSagas() ([]*types.SagaExecution, error) {
	return s.m.store.ListSagas()
}

func (s *ReplicatedStore) ListSagasByState(state types.SagaState) ([]*types.SagaExecution, error) {
	return s.m.store.ListSagasByState(state)
}

func (s *ReplicatedStore) UpdateSaga(saga *types.SagaExecution) error {
	return s.m.apply(opUpdateSaga, saga)
}

func (s *ReplicatedStore) CreateExperiment(experiment *types.Experiment) error {
	return s.m.apply(opCreateExperiment, experiment)
}

func (s *ReplicatedStore) GetExperiment(id string) (*types.Experiment, error) {
	return s.m.store.GetExperiment(id)
}

func (s *ReplicatedStore) ListExperiments() ([]*types.Experiment, error) {
	return s.m.store.ListExperiments()
}

func (s *ReplicatedStore) UpdateExperiment(experiment *types.Experiment) error {
	return s.m.apply(opUpdateExperiment, experiment)
}

func (s *ReplicatedStore) DeleteExperiment(id string) error {
	return s.m.apply(opDeleteExperiment, id)
}

func (s *ReplicatedStore) SetFlag(name string, enabled bool) error {
	return s.m.apply(opSetFlag, flagEntry{Name: name, Enabled: enabled})
}

func (s *ReplicatedStore) GetFlag(name string) (bool, error) {
	return s.m.store.GetFlag(name)
}

func (s *ReplicatedStore) ListFlags() (map[string]bool, error) {
	return s.m.store.ListFlags()
}

func (s *ReplicatedStore) DeleteFlag(name string) error {
	return s.m.apply(opDeleteFlag, name)
}

func (s *ReplicatedStore) CreateReplicationPair(pair *types.ReplicationPair) error {
	return s.m.apply(opCreatePair, pair)
}

func (s *ReplicatedStore) GetReplicationPair(id string) (*types.ReplicationPair, error) {
	return s.m.store.GetReplicationPair(id)
}

func (s *ReplicatedStore) GetReplicationPairByName(namespace, name string) (*types.ReplicationPair, error) {
	return s.m.store.GetReplicationPairByName(namespace, name)
}

func (s *ReplicatedStore) ListReplicationPairs() ([]*types.ReplicationPair, error) {
	return s.m.store.ListReplicationPairs()
}

func (s *ReplicatedStore) ListReplicationPairsByCell(cell string) ([]*types.ReplicationPair, error) {
	return s.m.store.ListReplicationPairsByCell(cell)
}

func (s *ReplicatedStore) ListReplicationPairsByState(state types.ReplicationState) ([]*types.ReplicationPair, error) {
	return s.m.store.ListReplicationPairsByState(state)
}

func (s *ReplicatedStore) UpdateReplicationPair(pair *types.ReplicationPair) error {
	return s.m.apply(opUpdatePair, pair)
}

func (s *ReplicatedStore) DeleteReplicationPair(id string) error {
	return s.m.apply(opDeletePair, id)
}

func (s *ReplicatedStore) SetDRPolicy(policy *types.DRPolicy) error {
	return s.m.apply(opSetDRPolicy, policy)
}

func (s *ReplicatedStore) GetDRPolicy(tier string) (*types.DRPolicy, error) {
	return s.m.store.GetDRPolicy(tier)
}

func (s *ReplicatedStore) ListDRPolicies() ([]*types.DRPolicy, error) {
	return s.m.store.ListDRPolicies()
}

func (s *ReplicatedStore) DeleteDRPolicy(tier string) error {
	return s.m.apply(opDeleteDRPolicy, tier)
}

func (s *ReplicatedStore) AppendAudit(entry *types.AuditEntry) error {
	return s.m.apply(opAppendAudit, entry)
}

func (s *ReplicatedStore) ListAudit(limit int) ([]*types.AuditEntry, error) {
	return s.m.store.ListAudit(limit)
}

// Close is a no-op: the manager owns the local store's lifecycle and closes
// it during Shutdown, after Raft has stopped applying.
func (s *ReplicatedStore) Close() error {
	return nil
}
