package manager

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

// Raft log operations. Every mutation of the control-plane state is one of
// these; reads never enter the log.
const (
	opSetConfig    = "set_config"
	opDeleteConfig = "delete_config"

	opCreateProvider = "create_provider"
	opUpdateProvider = "update_provider"
	opDeleteProvider = "delete_provider"

	opSetProviderHealth = "set_provider_health"

	opSetCredentials    = "set_credentials"
	opDeleteCredentials = "delete_credentials"

	opCreatePlacement = "create_placement"
	opUpdatePlacement = "update_placement"
	opDeletePlacement = "delete_placement"

	opCreateSaga = "create_saga"
	opUpdateSaga = "update_saga"

	opCreateExperiment = "create_experiment"
	opUpdateExperiment = "update_experiment"
	opDeleteExperiment = "delete_experiment"

	opSetFlag    = "set_flag"
	opDeleteFlag = "delete_flag"

	opCreatePair = "create_pair"
	opUpdatePair = "update_pair"
	opDeletePair = "delete_pair"

	opSetDRPolicy    = "set_dr_policy"
	opDeleteDRPolicy = "delete_dr_policy"

	opAppendAudit = "append_audit"
)

// Command is one state change in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// kvEntry is the payload for config writes.
type kvEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// flagEntry is the payload for flag writes.
type flagEntry struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// FSM applies committed Raft log entries to the local store. Every node
// holds a full copy of the state, so applying the same log on each of them
// keeps the stores convergent.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewFSM creates an FSM over the given local store.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store}
}

// Apply is called by Raft once a log entry is committed. The return value
// travels back to the leader-side caller via ApplyFuture.Response.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opSetConfig:
		var kv kvEntry
		if err := json.Unmarshal(cmd.Data, &kv); err != nil {
			return err
		}
		return f.store.SetConfig(kv.Key, kv.Value)

	case opDeleteConfig:
		var key string
		if err := json.Unmarshal(cmd.Data, &key); err != nil {
			return err
		}
		return f.store.DeleteConfig(key)

	case opCreateProvider:
		var provider types.ProviderDefinition
		if err := json.Unmarshal(cmd.Data, &provider); err != nil {
			return err
		}
		return f.store.CreateProvider(&provider)

	case opUpdateProvider:
		var provider types.ProviderDefinition
		if err := json.Unmarshal(cmd.Data, &provider); err != nil {
			return err
		}
		return f.store.UpdateProvider(&provider)

	case opDeleteProvider:
		var name string
		if err := json.Unmarshal(cmd.Data, &name); err != nil {
			return err
		}
		return f.store.DeleteProvider(name)

	case opSetProviderHealth:
		var health types.ProviderHealth
		if err := json.Unmarshal(cmd.Data, &health); err != nil {
			return err
		}
		return f.store.SetProviderHealth(&health)

	case opSetCredentials:
		var creds types.ProviderCredentials
		if err := json.Unmarshal(cmd.Data, &creds); err != nil {
			return err
		}
		return f.store.SetCredentials(&creds)

	case opDeleteCredentials:
		var provider string
		if err := json.Unmarshal(cmd.Data, &provider); err != nil {
			return err
		}
		return f.store.DeleteCredentials(provider)

	case opCreatePlacement:
		var placement types.Placement
		if err := json.Unmarshal(cmd.Data, &placement); err != nil {
			return err
		}
		return f.store.CreatePlacement(&placement)

	case opUpdatePlacement:
		var placement types.Placement
		if err := json.Unmarshal(cmd.Data, &placement); err != nil {
			return err
		}
		return f.store.UpdatePlacement(&placement)

	case opDeletePlacement:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeletePlacement(id)

	case opCreateSaga:
		var saga types.SagaExecution
		if err := json.Unmarshal(cmd.Data, &saga); err != nil {
			return err
		}
		return f.store.CreateSaga(&saga)

	case opUpdateSaga:
		var saga types.SagaExecution
		if err := json.Unmarshal(cmd.Data, &saga); err != nil {
			return err
		}
		return f.store.UpdateSaga(&saga)

	case opCreateExperiment:
		var experiment types.Experiment
		if err := json.Unmarshal(cmd.Data, &experiment); err != nil {
			return err
		}
		return f.store.CreateExperiment(&experiment)

	case opUpdateExperiment:
		var experiment types.Experiment
		if err := json.Unmarshal(cmd.Data, &experiment); err != nil {
			return err
		}
		return f.store.UpdateExperiment(&experiment)

	case opDeleteExperiment:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteExperiment(id)

	case opSetFlag:
		var flag flagEntry
		if err := json.Unmarshal(cmd.Data, &flag); err != nil {
			return err
		}
		return f.store.SetFlag(flag.Name, flag.Enabled)

	case opDeleteFlag:
		var name string
		if err := json.Unmarshal(cmd.Data, &name); err != nil {
			return err
		}
		return f.store.DeleteFlag(name)

	case opCreatePair:
		var pair types.ReplicationPair
		if err := json.Unmarshal(cmd.Data, &pair); err != nil {
			return err
		}
		return f.store.CreateReplicationPair(&pair)

	case opUpdatePair:
		var pair types.ReplicationPair
		if err := json.Unmarshal(cmd.Data, &pair); err != nil {
			return err
		}
		return f.store.UpdateReplicationPair(&pair)

	case opDeletePair:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteReplicationPair(id)

	case opSetDRPolicy:
		var policy types.DRPolicy
		if err := json.Unmarshal(cmd.Data, &policy); err != nil {
			return err
		}
		return f.store.SetDRPolicy(&policy)

	case opDeleteDRPolicy:
		var tier string
		if err := json.Unmarshal(cmd.Data, &tier); err != nil {
			return err
		}
		return f.store.DeleteDRPolicy(tier)

	case opAppendAudit:
		var entry types.AuditEntry
		if err := json.Unmarshal(cmd.Data, &entry); err != nil {
			return err
		}
		return f.store.AppendAudit(&entry)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot captures the full control-plane state for log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	config, err := f.store.ListConfig()
	if err != nil {
		return nil, fmt.Errorf("snapshot config: %w", err)
	}
	providers, err := f.store.ListProviders()
	if err != nil {
		return nil, fmt.Errorf("snapshot providers: %w", err)
	}
	health, err := f.store.ListProviderHealth()
	if err != nil {
		return nil, fmt.Errorf("snapshot provider health: %w", err)
	}
	credentials, err := f.store.ListCredentials()
	if err != nil {
		return nil, fmt.Errorf("snapshot credentials: %w", err)
	}
	placements, err := f.store.ListPlacements()
	if err != nil {
		return nil, fmt.Errorf("snapshot placements: %w", err)
	}
	sagas, err := f.store.ListSagas()
	if err != nil {
		return nil, fmt.Errorf("snapshot sagas: %w", err)
	}
	experiments, err := f.store.ListExperiments()
	if err != nil {
		return nil, fmt.Errorf("snapshot experiments: %w", err)
	}
	flags, err := f.store.ListFlags()
	if err != nil {
		return nil, fmt.Errorf("snapshot flags: %w", err)
	}
	pairs, err := f.store.ListReplicationPairs()
	if err != nil {
		return nil, fmt.Errorf("snapshot pairs: %w", err)
	}
	policies, err := f.store.ListDRPolicies()
	if err != nil {
		return nil, fmt.Errorf("snapshot dr policies: %w", err)
	}
	audit, err := f.store.ListAudit(0)
	if err != nil {
		return nil, fmt.Errorf("snapshot audit: %w", err)
	}
	// ListAudit is newest-first; the snapshot keeps chronological order so
	// a restore re-appends with the same sequence numbers.
	for i, j := 0, len(audit)-1; i < j; i, j = i+1, j-1 {
		audit[i], audit[j] = audit[j], audit[i]
	}

	return &fsmSnapshot{
		Config:      config,
		Providers:   providers,
		Health:      health,
		Credentials: credentials,
		Placements:  placements,
		Sagas:       sagas,
		Experiments: experiments,
		Flags:       flags,
		Pairs:       pairs,
		Policies:    policies,
		Audit:       audit,
	}, nil
}

// Restore replaces the FSM state from a snapshot stream.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range snap.Config {
		if err := f.store.SetConfig(entry.Key, entry.Value); err != nil {
			return fmt.Errorf("restore config %s: %w", entry.Key, err)
		}
	}
	for _, provider := range snap.Providers {
		if err := f.store.CreateProvider(provider); err != nil {
			return fmt.Errorf("restore provider %s: %w", provider.Name, err)
		}
	}
	for _, health := range snap.Health {
		if err := f.store.SetProviderHealth(health); err != nil {
			return fmt.Errorf("restore provider health %s: %w", health.Provider, err)
		}
	}
	for _, creds := range snap.Credentials {
		if err := f.store.SetCredentials(creds); err != nil {
			return fmt.Errorf("restore credentials %s: %w", creds.Provider, err)
		}
	}
	for _, placement := range snap.Placements {
		if err := f.store.CreatePlacement(placement); err != nil {
			return fmt.Errorf("restore placement %s: %w", placement.ID, err)
		}
	}
	for _, saga := range snap.Sagas {
		if err := f.store.CreateSaga(saga); err != nil {
			return fmt.Errorf("restore saga %s: %w", saga.ID, err)
		}
	}
	for _, experiment := range snap.Experiments {
		if err := f.store.CreateExperiment(experiment); err != nil {
			return fmt.Errorf("restore experiment %s: %w", experiment.ID, err)
		}
	}
	for name, enabled := range snap.Flags {
		if err := f.store.SetFlag(name, enabled); err != nil {
			return fmt.Errorf("restore flag %s: %w", name, err)
		}
	}
	for _, pair := range snap.Pairs {
		if err := f.store.CreateReplicationPair(pair); err != nil {
			return fmt.Errorf("restore pair %s: %w", pair.ID, err)
		}
	}
	for _, policy := range snap.Policies {
		if err := f.store.SetDRPolicy(policy); err != nil {
			return fmt.Errorf("restore dr policy %s: %w", policy.Tier, err)
		}
	}
	for _, entry := range snap.Audit {
		if err := f.store.AppendAudit(entry); err != nil {
			return fmt.Errorf("restore audit entry %d: %w", entry.Seq, err)
		}
	}

	return nil
}

// fsmSnapshot is the serialized control-plane state. Audit entries are in
// chronological order.
type fsmSnapshot struct {
	Config      []*types.ConfigEntry         `json:"config"`
	Providers   []*types.ProviderDefinition  `json:"providers"`
	Health      []*types.ProviderHealth      `json:"provider_health"`
	Credentials []*types.ProviderCredentials `json:"credentials"`
	Placements  []*types.Placement           `json:"placements"`
	Sagas       []*types.SagaExecution       `json:"sagas"`
	Experiments []*types.Experiment          `json:"experiments"`
	Flags       map[string]bool              `json:"flags"`
	Pairs       []*types.ReplicationPair     `json:"pairs"`
	Policies    []*types.DRPolicy            `json:"dr_policies"`
	Audit       []*types.AuditEntry          `json:"audit"`
}

// Persist writes the snapshot to the sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases snapshot resources. The snapshot holds plain slices, so
// there is nothing to free.
func (s *fsmSnapshot) Release() {}
