package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/cellgrid/strata/pkg/types"
)

// PostgresStore implements Store on PostgreSQL via sqlx over the pgx driver.
// Rows are stored as JSONB documents; index columns are duplicated out of
// the document so list filters hit btree indexes instead of scans.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to Postgres and applies pending migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the database
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Config operations
func (s *PostgresStore) SetConfig(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3`,
		key, value, time.Now().UTC())
	return err
}

func (s *PostgresStore) GetConfig(key string) (*types.ConfigEntry, error) {
	var entry types.ConfigEntry
	err := s.db.QueryRowx(`SELECT key, value, updated_at FROM config WHERE key = $1`, key).
		Scan(&entry.Key, &entry.Value, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Resource: "config key", Key: key}
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *PostgresStore) ListConfig() ([]*types.ConfigEntry, error) {
	rows, err := s.db.Queryx(`SELECT key, value, updated_at FROM config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*types.ConfigEntry
	for rows.Next() {
		var entry types.ConfigEntry
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeleteConfig(key string) error {
	_, err := s.db.Exec(`DELETE FROM config WHERE key = $1`, key)
	return err
}

// upsertDoc writes a JSONB document row keyed by a single column.
func (s *PostgresStore) upsertDoc(table, keyCol, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, data) VALUES ($1, $2)
		 ON CONFLICT (%s) DO UPDATE SET data = $2`, table, keyCol, keyCol)
	_, err = s.db.Exec(query, key, data)
	return err
}

// getDoc reads a JSONB document row into out. Returns NotFoundError with the
// given resource name when the row is absent.
func (s *PostgresStore) getDoc(table, keyCol, key, resource string, out interface{}) error {
	var data []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = $1`, table, keyCol)
	err := s.db.QueryRowx(query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.NotFoundError{Resource: resource, Key: key}
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// listDocs reads every document of a query into the collect callback.
func (s *PostgresStore) listDocs(query string, collect func(data []byte) error, args ...interface{}) error {
	rows, err := s.db.Queryx(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := collect(data); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Provider operations
func (s *PostgresStore) CreateProvider(provider *types.ProviderDefinition) error {
	return s.upsertDoc("providers", "name", provider.Name, provider)
}

func (s *PostgresStore) GetProvider(name string) (*types.ProviderDefinition, error) {
	var provider types.ProviderDefinition
	if err := s.getDoc("providers", "name", name, "provider", &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

func (s *PostgresStore) ListProviders() ([]*types.ProviderDefinition, error) {
	var providers []*types.ProviderDefinition
	err := s.listDocs(`SELECT data FROM providers ORDER BY name`, func(data []byte) error {
		var provider types.ProviderDefinition
		if err := json.Unmarshal(data, &provider); err != nil {
			return err
		}
		providers = append(providers, &provider)
		return nil
	})
	return providers, err
}

func (s *PostgresStore) UpdateProvider(provider *types.ProviderDefinition) error {
	return s.CreateProvider(provider)
}

func (s *PostgresStore) DeleteProvider(name string) error {
	_, err := s.db.Exec(`DELETE FROM providers WHERE name = $1`, name)
	return err
}

// Provider health operations
func (s *PostgresStore) SetProviderHealth(health *types.ProviderHealth) error {
	return s.upsertDoc("provider_health", "provider", health.Provider, health)
}

func (s *PostgresStore) GetProviderHealth(provider string) (*types.ProviderHealth, error) {
	var health types.ProviderHealth
	if err := s.getDoc("provider_health", "provider", provider, "provider health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (s *PostgresStore) ListProviderHealth() ([]*types.ProviderHealth, error) {
	var rows []*types.ProviderHealth
	err := s.listDocs(`SELECT data FROM provider_health ORDER BY provider`, func(data []byte) error {
		var health types.ProviderHealth
		if err := json.Unmarshal(data, &health); err != nil {
			return err
		}
		rows = append(rows, &health)
		return nil
	})
	return rows, err
}

// Credentials operations
func (s *PostgresStore) SetCredentials(creds *types.ProviderCredentials) error {
	return s.upsertDoc("credentials", "provider", creds.Provider, creds)
}

func (s *PostgresStore) GetCredentials(provider string) (*types.ProviderCredentials, error) {
	var creds types.ProviderCredentials
	if err := s.getDoc("credentials", "provider", provider, "credentials", &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (s *PostgresStore) ListCredentials() ([]*types.ProviderCredentials, error) {
	var rows []*types.ProviderCredentials
	err := s.listDocs(`SELECT data FROM credentials ORDER BY provider`, func(data []byte) error {
		var creds types.ProviderCredentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return err
		}
		rows = append(rows, &creds)
		return nil
	})
	return rows, err
}

func (s *PostgresStore) DeleteCredentials(provider string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE provider = $1`, provider)
	return err
}

// Placement operations
func (s *PostgresStore) CreatePlacement(placement *types.Placement) error {
	data, err := json.Marshal(placement)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO placements (id, namespace, name, product, status, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   namespace = $2, name = $3, product = $4, status = $5, data = $6`,
		placement.ID, placement.Namespace, placement.Name, placement.Product,
		string(placement.Status), data)
	return err
}

func (s *PostgresStore) GetPlacement(id string) (*types.Placement, error) {
	var placement types.Placement
	if err := s.getDoc("placements", "id", id, "placement", &placement); err != nil {
		return nil, err
	}
	return &placement, nil
}

func (s *PostgresStore) GetPlacementByName(namespace, name string) (*types.Placement, error) {
	var data []byte
	err := s.db.QueryRowx(
		`SELECT data FROM placements WHERE namespace = $1 AND name = $2
		 ORDER BY (data->>'created_at') DESC LIMIT 1`, namespace, name).
		Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Resource: "placement", Key: namespace + "/" + name}
	}
	if err != nil {
		return nil, err
	}
	var placement types.Placement
	if err := json.Unmarshal(data, &placement); err != nil {
		return nil, err
	}
	return &placement, nil
}

func (s *PostgresStore) listPlacements(query string, args ...interface{}) ([]*types.Placement, error) {
	var placements []*types.Placement
	err := s.listDocs(query, func(data []byte) error {
		var placement types.Placement
		if err := json.Unmarshal(data, &placement); err != nil {
			return err
		}
		placements = append(placements, &placement)
		return nil
	}, args...)
	return placements, err
}

func (s *PostgresStore) ListPlacements() ([]*types.Placement, error) {
	return s.listPlacements(`SELECT data FROM placements ORDER BY id`)
}

func (s *PostgresStore) ListPlacementsByStatus(status types.PlacementStatus) ([]*types.Placement, error) {
	return s.listPlacements(`SELECT data FROM placements WHERE status = $1 ORDER BY id`, string(status))
}

func (s *PostgresStore) ListPlacementsByProduct(product string) ([]*types.Placement, error) {
	return s.listPlacements(`SELECT data FROM placements WHERE product = $1 ORDER BY id`, product)
}

func (s *PostgresStore) UpdatePlacement(placement *types.Placement) error {
	return s.CreatePlacement(placement)
}

func (s *PostgresStore) DeletePlacement(id string) error {
	_, err := s.db.Exec(`DELETE FROM placements WHERE id = $1`, id)
	return err
}

// Saga operations
func (s *PostgresStore) CreateSaga(saga *types.SagaExecution) error {
	data, err := json.Marshal(saga)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sagas (id, state, data) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET state = $2, data = $3`,
		saga.ID, string(saga.State), data)
	return err
}

func (s *PostgresStore) GetSaga(id string) (*types.SagaExecution, error) {
	var saga types.SagaExecution
	if err := s.getDoc("sagas", "id", id, "saga", &saga); err != nil {
		return nil, err
	}
	return &saga, nil
}

func (s *PostgresStore) listSagas(query string, args ...interface{}) ([]*types.SagaExecution, error) {
	var sagas []*types.SagaExecution
	err := s.listDocs(query, func(data []byte) error {
		var saga types.SagaExecution
		if err := json.Unmarshal(data, &saga); err != nil {
			return err
		}
		sagas = append(sagas, &saga)
		return nil
	}, args...)
	return sagas, err
}

func (s *PostgresStore) ListSagas() ([]*types.SagaExecution, error) {
	return s.listSagas(`SELECT data FROM sagas ORDER BY id`)
}

func (s *PostgresStore) ListSagasByState(state types.SagaState) ([]*types.SagaExecution, error) {
	return s.listSagas(`SELECT data FROM sagas WHERE state = $1 ORDER BY id`, string(state))
}

func (s *PostgresStore) UpdateSaga(saga *types.SagaExecution) error {
	return s.CreateSaga(saga)
}

// Experiment operations
func (s *PostgresStore) CreateExperiment(experiment *types.Experiment) error {
	return s.upsertDoc("experiments", "id", experiment.ID, experiment)
}

func (s *PostgresStore) GetExperiment(id string) (*types.Experiment, error) {
	var experiment types.Experiment
	if err := s.getDoc("experiments", "id", id, "experiment", &experiment); err != nil {
		return nil, err
	}
	return &experiment, nil
}

func (s *PostgresStore) ListExperiments() ([]*types.Experiment, error) {
	var experiments []*types.Experiment
	err := s.listDocs(`SELECT data FROM experiments ORDER BY id`, func(data []byte) error {
		var experiment types.Experiment
		if err := json.Unmarshal(data, &experiment); err != nil {
			return err
		}
		experiments = append(experiments, &experiment)
		return nil
	})
	return experiments, err
}

func (s *PostgresStore) UpdateExperiment(experiment *types.Experiment) error {
	return s.CreateExperiment(experiment)
}

func (s *PostgresStore) DeleteExperiment(id string) error {
	_, err := s.db.Exec(`DELETE FROM experiments WHERE id = $1`, id)
	return err
}

// Flag operations
func (s *PostgresStore) SetFlag(name string, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO feature_flags (name, enabled) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET enabled = $2`, name, enabled)
	return err
}

func (s *PostgresStore) GetFlag(name string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowx(`SELECT enabled FROM feature_flags WHERE name = $1`, name).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &types.NotFoundError{Resource: "flag", Key: name}
	}
	return enabled, err
}

func (s *PostgresStore) DeleteFlag(name string) error {
	res, err := s.db.Exec(`DELETE FROM feature_flags WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &types.NotFoundError{Resource: "flag", Key: name}
	}
	return nil
}

func (s *PostgresStore) ListFlags() (map[string]bool, error) {
	rows, err := s.db.Queryx(`SELECT name, enabled FROM feature_flags`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make(map[string]bool)
	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, err
		}
		flags[name] = enabled
	}
	return flags, rows.Err()
}

// Replication pair operations
func (s *PostgresStore) CreateReplicationPair(pair *types.ReplicationPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO replication_pairs (id, namespace, name, cell, state, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   namespace = $2, name = $3, cell = $4, state = $5, data = $6`,
		pair.ID, pair.Namespace, pair.Name, pair.Cell, string(pair.State), data)
	return err
}

func (s *PostgresStore) GetReplicationPair(id string) (*types.ReplicationPair, error) {
	var pair types.ReplicationPair
	if err := s.getDoc("replication_pairs", "id", id, "replication pair", &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *PostgresStore) GetReplicationPairByName(namespace, name string) (*types.ReplicationPair, error) {
	var data []byte
	err := s.db.QueryRowx(
		`SELECT data FROM replication_pairs WHERE namespace = $1 AND name = $2`, namespace, name).
		Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Resource: "replication pair", Key: namespace + "/" + name}
	}
	if err != nil {
		return nil, err
	}
	var pair types.ReplicationPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *PostgresStore) listReplicationPairs(query string, args ...interface{}) ([]*types.ReplicationPair, error) {
	var pairs []*types.ReplicationPair
	err := s.listDocs(query, func(data []byte) error {
		var pair types.ReplicationPair
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		pairs = append(pairs, &pair)
		return nil
	}, args...)
	return pairs, err
}

func (s *PostgresStore) ListReplicationPairs() ([]*types.ReplicationPair, error) {
	return s.listReplicationPairs(`SELECT data FROM replication_pairs ORDER BY id`)
}

func (s *PostgresStore) ListReplicationPairsByCell(cell string) ([]*types.ReplicationPair, error) {
	return s.listReplicationPairs(`SELECT data FROM replication_pairs WHERE cell = $1 ORDER BY id`, cell)
}

func (s *PostgresStore) ListReplicationPairsByState(state types.ReplicationState) ([]*types.ReplicationPair, error) {
	return s.listReplicationPairs(`SELECT data FROM replication_pairs WHERE state = $1 ORDER BY id`, string(state))
}

func (s *PostgresStore) UpdateReplicationPair(pair *types.ReplicationPair) error {
	return s.CreateReplicationPair(pair)
}

func (s *PostgresStore) DeleteReplicationPair(id string) error {
	_, err := s.db.Exec(`DELETE FROM replication_pairs WHERE id = $1`, id)
	return err
}

// DR policy operations
func (s *PostgresStore) SetDRPolicy(policy *types.DRPolicy) error {
	return s.upsertDoc("dr_policies", "tier", policy.Tier, policy)
}

func (s *PostgresStore) GetDRPolicy(tier string) (*types.DRPolicy, error) {
	var policy types.DRPolicy
	if err := s.getDoc("dr_policies", "tier", tier, "dr policy", &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *PostgresStore) ListDRPolicies() ([]*types.DRPolicy, error) {
	var policies []*types.DRPolicy
	err := s.listDocs(`SELECT data FROM dr_policies ORDER BY tier`, func(data []byte) error {
		var policy types.DRPolicy
		if err := json.Unmarshal(data, &policy); err != nil {
			return err
		}
		policies = append(policies, &policy)
		return nil
	})
	return policies, err
}

func (s *PostgresStore) DeleteDRPolicy(tier string) error {
	res, err := s.db.Exec(`DELETE FROM dr_policies WHERE tier = $1`, tier)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &types.NotFoundError{Resource: "dr policy", Key: tier}
	}
	return nil
}

// Audit operations
func (s *PostgresStore) AppendAudit(entry *types.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.QueryRowx(
		`INSERT INTO audit_log (data) VALUES ($1) RETURNING seq`, data).
		Scan(&entry.Seq)
}

func (s *PostgresStore) ListAudit(limit int) ([]*types.AuditEntry, error) {
	query := `SELECT seq, data FROM audit_log ORDER BY seq DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Queryx(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*types.AuditEntry
	for rows.Next() {
		var seq uint64
		var data []byte
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, err
		}
		var entry types.AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, err
		}
		entry.Seq = seq
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
