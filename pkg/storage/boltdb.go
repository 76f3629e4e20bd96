package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cellgrid/strata/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketConfig           = []byte("config")
	bucketProviders        = []byte("providers")
	bucketProviderHealth   = []byte("provider_health")
	bucketCredentials      = []byte("credentials")
	bucketPlacements       = []byte("placements")
	bucketSagas            = []byte("sagas")
	bucketExperiments      = []byte("experiments")
	bucketFlags            = []byte("flags")
	bucketReplicationPairs = []byte("replication_pairs")
	bucketDRPolicies       = []byte("dr_policies")
	bucketAudit            = []byte("audit")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "strata.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketConfig,
			bucketProviders,
			bucketProviderHealth,
			bucketCredentials,
			bucketPlacements,
			bucketSagas,
			bucketExperiments,
			bucketFlags,
			bucketReplicationPairs,
			bucketDRPolicies,
			bucketAudit,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Config operations
func (s *BoltStore) SetConfig(key, value string) error {
	entry := &types.ConfigEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) GetConfig(key string) (*types.ConfigEntry, error) {
	var entry types.ConfigEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		data := b.Get([]byte(key))
		if data == nil {
			return &types.NotFoundError{Resource: "config key", Key: key}
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *BoltStore) ListConfig() ([]*types.ConfigEntry, error) {
	var entries []*types.ConfigEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		return b.ForEach(func(k, v []byte) error {
			var entry types.ConfigEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	return entries, err
}

func (s *BoltStore) DeleteConfig(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		return b.Delete([]byte(key))
	})
}

// Provider operations
func (s *BoltStore) CreateProvider(provider *types.ProviderDefinition) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		data, err := json.Marshal(provider)
		if err != nil {
			return err
		}
		return b.Put([]byte(provider.Name), data)
	})
}

func (s *BoltStore) GetProvider(name string) (*types.ProviderDefinition, error) {
	var provider types.ProviderDefinition
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		data := b.Get([]byte(name))
		if data == nil {
			return &types.NotFoundError{Resource: "provider", Key: name}
		}
		return json.Unmarshal(data, &provider)
	})
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (s *BoltStore) ListProviders() ([]*types.ProviderDefinition, error) {
	var providers []*types.ProviderDefinition
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		return b.ForEach(func(k, v []byte) error {
			var provider types.ProviderDefinition
			if err := json.Unmarshal(v, &provider); err != nil {
				return err
			}
			providers = append(providers, &provider)
			return nil
		})
	})
	return providers, err
}

func (s *BoltStore) UpdateProvider(provider *types.ProviderDefinition) error {
	return s.CreateProvider(provider) // Same as create (upsert)
}

func (s *BoltStore) DeleteProvider(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		return b.Delete([]byte(name))
	})
}

// Provider health operations
func (s *BoltStore) SetProviderHealth(health *types.ProviderHealth) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviderHealth)
		data, err := json.Marshal(health)
		if err != nil {
			return err
		}
		return b.Put([]byte(health.Provider), data)
	})
}

func (s *BoltStore) GetProviderHealth(provider string) (*types.ProviderHealth, error) {
	var health types.ProviderHealth
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviderHealth)
		data := b.Get([]byte(provider))
		if data == nil {
			return &types.NotFoundError{Resource: "provider health", Key: provider}
		}
		return json.Unmarshal(data, &health)
	})
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (s *BoltStore) ListProviderHealth() ([]*types.ProviderHealth, error) {
	var rows []*types.ProviderHealth
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviderHealth)
		return b.ForEach(func(k, v []byte) error {
			var health types.ProviderHealth
			if err := json.Unmarshal(v, &health); err != nil {
				return err
			}
			rows = append(rows, &health)
			return nil
		})
	})
	return rows, err
}

// Credentials operations
func (s *BoltStore) SetCredentials(creds *types.ProviderCredentials) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		data, err := json.Marshal(creds)
		if err != nil {
			return err
		}
		return b.Put([]byte(creds.Provider), data)
	})
}

func (s *BoltStore) GetCredentials(provider string) (*types.ProviderCredentials, error) {
	var creds types.ProviderCredentials
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		data := b.Get([]byte(provider))
		if data == nil {
			return &types.NotFoundError{Resource: "credentials", Key: provider}
		}
		return json.Unmarshal(data, &creds)
	})
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

func (s *BoltStore) ListCredentials() ([]*types.ProviderCredentials, error) {
	var rows []*types.ProviderCredentials
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		return b.ForEach(func(k, v []byte) error {
			var creds types.ProviderCredentials
			if err := json.Unmarshal(v, &creds); err != nil {
				return err
			}
			rows = append(rows, &creds)
			return nil
		})
	})
	return rows, err
}

func (s *BoltStore) DeleteCredentials(provider string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		return b.Delete([]byte(provider))
	})
}

// Placement operations
func (s *BoltStore) CreatePlacement(placement *types.Placement) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlacements)
		data, err := json.Marshal(placement)
		if err != nil {
			return err
		}
		return b.Put([]byte(placement.ID), data)
	})
}

func (s *BoltStore) GetPlacement(id string) (*types.Placement, error) {
	var placement types.Placement
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlacements)
		data := b.Get([]byte(id))
		if data == nil {
			return &types.NotFoundError{Resource: "placement", Key: id}
		}
		return json.Unmarshal(data, &placement)
	})
	if err != nil {
		return nil, err
	}
	return &placement, nil
}

func (s *BoltStore) GetPlacementByName(namespace, name string) (*types.Placement, error) {
	var found *types.Placement
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlacements)
		return b.ForEach(func(k, v []byte) error {
			var placement types.Placement
			if err := json.Unmarshal(v, &placement); err != nil {
				return err
			}
			// Rows are placement history; keep the most recent match.
			if placement.Namespace == namespace && placement.Name == name {
				if found == nil || placement.CreatedAt.After(found.CreatedAt) {
					found = &placement
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &types.NotFoundError{Resource: "placement", Key: namespace + "/" + name}
	}
	return found, nil
}

func (s *BoltStore) ListPlacements() ([]*types.Placement, error) {
	var placements []*types.Placement
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlacements)
		return b.ForEach(func(k, v []byte) error {
			var placement types.Placement
			if err := json.Unmarshal(v, &placement); err != nil {
				return err
			}
			placements = append(placements, &placement)
			return nil
		})
	})
	return placements, err
}

func (s *BoltStore) ListPlacementsByStatus(status types.PlacementStatus) ([]*types.Placement, error) {
	all, err := s.ListPlacements()
	if err != nil {
		return nil, err
	}
	var placements []*types.Placement
	for _, p := range all {
		if p.Status == status {
			placements = append(placements, p)
		}
	}
	return placements, nil
}

func (s *BoltStore) ListPlacementsByProduct(product string) ([]*types.Placement, error) {
	all, err := s.ListPlacements()
	if err != nil {
		return nil, err
	}
	var placements []*types.Placement
	for _, p := range all {
		if p.Product == product {
			placements = append(placements, p)
		}
	}
	return placements, nil
}

func (s *BoltStore) UpdatePlacement(placement *types.Placement) error {
	return s.CreatePlacement(placement) // Same as create (upsert)
}

func (s *BoltStore) DeletePlacement(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlacements)
		return b.Delete([]byte(id))
	})
}

// Saga operations
func (s *BoltStore) CreateSaga(saga *types.SagaExecution) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSagas)
		data, err := json.Marshal(saga)
		if err != nil {
			return err
		}
		return b.Put([]byte(saga.ID), data)
	})
}

func (s *BoltStore) GetSaga(id string) (*types.SagaExecution, error) {
	var saga types.SagaExecution
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSagas)
		data := b.Get([]byte(id))
		if data == nil {
			return &types.NotFoundError{Resource: "saga", Key: id}
		}
		return json.Unmarshal(data, &saga)
	})
	if err != nil {
		return nil, err
	}
	return &saga, nil
}

func (s *BoltStore) ListSagas() ([]*types.SagaExecution, error) {
	var sagas []*types.SagaExecution
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSagas)
		return b.ForEach(func(k, v []byte) error {
			var saga types.SagaExecution
			if err := json.Unmarshal(v, &saga); err != nil {
				return err
			}
			sagas = append(sagas, &saga)
			return nil
		})
	})
	return sagas, err
}

func (s *BoltStore) ListSagasByState(state types.SagaState) ([]*types.SagaExecution, error) {
	all, err := s.ListSagas()
	if err != nil {
		return nil, err
	}
	var sagas []*types.SagaExecution
	for _, saga := range all {
		if saga.State == state {
			sagas = append(sagas, saga)
		}
	}
	return sagas, nil
}

func (s *BoltStore) UpdateSaga(saga *types.SagaExecution) error {
	return s.CreateSaga(saga) // Same as create (upsert)
}

// Experiment operations
func (s *BoltStore) CreateExperiment(experiment *types.Experiment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExperiments)
		data, err := json.Marshal(experiment)
		if err != nil {
			return err
		}
		return b.Put([]byte(experiment.ID), data)
	})
}

func (s *BoltStore) GetExperiment(id string) (*types.Experiment, error) {
	var experiment types.Experiment
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExperiments)
		data := b.Get([]byte(id))
		if data == nil {
			return &types.NotFoundError{Resource: "experiment", Key: id}
		}
		return json.Unmarshal(data, &experiment)
	})
	if err != nil {
		return nil, err
	}
	return &experiment, nil
}

func (s *BoltStore) ListExperiments() ([]*types.Experiment, error) {
	var experiments []*types.Experiment
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExperiments)
		return b.ForEach(func(k, v []byte) error {
			var experiment types.Experiment
			if err := json.Unmarshal(v, &experiment); err != nil {
				return err
			}
			experiments = append(experiments, &experiment)
			return nil
		})
	})
	return experiments, err
}

func (s *BoltStore) UpdateExperiment(experiment *types.Experiment) error {
	return s.CreateExperiment(experiment) // Same as create (upsert)
}

func (s *BoltStore) DeleteExperiment(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExperiments)
		return b.Delete([]byte(id))
	})
}

// Flag operations
func (s *BoltStore) SetFlag(name string, enabled bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlags)
		data, err := json.Marshal(enabled)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), data)
	})
}

func (s *BoltStore) GetFlag(name string) (bool, error) {
	var enabled bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlags)
		data := b.Get([]byte(name))
		if data == nil {
			return &types.NotFoundError{Resource: "flag", Key: name}
		}
		return json.Unmarshal(data, &enabled)
	})
	return enabled, err
}

func (s *BoltStore) DeleteFlag(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlags)
		if b.Get([]byte(name)) == nil {
			return &types.NotFoundError{Resource: "flag", Key: name}
		}
		return b.Delete([]byte(name))
	})
}

func (s *BoltStore) ListFlags() (map[string]bool, error) {
	flags := make(map[string]bool)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlags)
		return b.ForEach(func(k, v []byte) error {
			var enabled bool
			if err := json.Unmarshal(v, &enabled); err != nil {
				return err
			}
			flags[string(k)] = enabled
			return nil
		})
	})
	return flags, err
}

// Replication pair operations
func (s *BoltStore) CreateReplicationPair(pair *types.ReplicationPair) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplicationPairs)
		data, err := json.Marshal(pair)
		if err != nil {
			return err
		}
		return b.Put([]byte(pair.ID), data)
	})
}

func (s *BoltStore) GetReplicationPair(id string) (*types.ReplicationPair, error) {
	var pair types.ReplicationPair
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplicationPairs)
		data := b.Get([]byte(id))
		if data == nil {
			return &types.NotFoundError{Resource: "replication pair", Key: id}
		}
		return json.Unmarshal(data, &pair)
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *BoltStore) GetReplicationPairByName(namespace, name string) (*types.ReplicationPair, error) {
	var found *types.ReplicationPair
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplicationPairs)
		return b.ForEach(func(k, v []byte) error {
			var pair types.ReplicationPair
			if err := json.Unmarshal(v, &pair); err != nil {
				return err
			}
			if pair.Namespace == namespace && pair.Name == name {
				found = &pair
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &types.NotFoundError{Resource: "replication pair", Key: namespace + "/" + name}
	}
	return found, nil
}

func (s *BoltStore) ListReplicationPairs() ([]*types.ReplicationPair, error) {
	var pairs []*types.ReplicationPair
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplicationPairs)
		return b.ForEach(func(k, v []byte) error {
			var pair types.ReplicationPair
			if err := json.Unmarshal(v, &pair); err != nil {
				return err
			}
			pairs = append(pairs, &pair)
			return nil
		})
	})
	return pairs, err
}

func (s *BoltStore) ListReplicationPairsByCell(cell string) ([]*types.ReplicationPair, error) {
	all, err := s.ListReplicationPairs()
	if err != nil {
		return nil, err
	}
	var pairs []*types.ReplicationPair
	for _, pair := range all {
		if pair.Cell == cell {
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func (s *BoltStore) ListReplicationPairsByState(state types.ReplicationState) ([]*types.ReplicationPair, error) {
	all, err := s.ListReplicationPairs()
	if err != nil {
		return nil, err
	}
	var pairs []*types.ReplicationPair
	for _, pair := range all {
		if pair.State == state {
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func (s *BoltStore) UpdateReplicationPair(pair *types.ReplicationPair) error {
	return s.CreateReplicationPair(pair) // Same as create (upsert)
}

func (s *BoltStore) DeleteReplicationPair(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplicationPairs)
		return b.Delete([]byte(id))
	})
}

// DR policy operations
func (s *BoltStore) SetDRPolicy(policy *types.DRPolicy) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDRPolicies)
		data, err := json.Marshal(policy)
		if err != nil {
			return err
		}
		return b.Put([]byte(policy.Tier), data)
	})
}

func (s *BoltStore) GetDRPolicy(tier string) (*types.DRPolicy, error) {
	var policy types.DRPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDRPolicies)
		data := b.Get([]byte(tier))
		if data == nil {
			return &types.NotFoundError{Resource: "dr policy", Key: tier}
		}
		return json.Unmarshal(data, &policy)
	})
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *BoltStore) ListDRPolicies() ([]*types.DRPolicy, error) {
	var policies []*types.DRPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDRPolicies)
		return b.ForEach(func(k, v []byte) error {
			var policy types.DRPolicy
			if err := json.Unmarshal(v, &policy); err != nil {
				return err
			}
			policies = append(policies, &policy)
			return nil
		})
	})
	return policies, err
}

func (s *BoltStore) DeleteDRPolicy(tier string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDRPolicies)
		if b.Get([]byte(tier)) == nil {
			return &types.NotFoundError{Resource: "dr policy", Key: tier}
		}
		return b.Delete([]byte(tier))
	})
}

// Audit operations
func (s *BoltStore) AppendAudit(entry *types.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry.Seq = seq
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(auditKey(seq), data)
	})
}

func (s *BoltStore) ListAudit(limit int) ([]*types.AuditEntry, error) {
	var entries []*types.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		// Newest first
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry types.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			if limit > 0 && len(entries) >= limit {
				return nil
			}
		}
		return nil
	})
	return entries, err
}

// auditKey encodes a sequence number as a big-endian key so cursor order
// matches append order.
func auditKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
