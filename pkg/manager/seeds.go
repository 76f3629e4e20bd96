package manager

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/replication"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

// providerDisplayNames maps pool provider names to their catalog labels.
// Unknown providers fall back to their raw name.
var providerDisplayNames = map[string]string{
	"aws": "Amazon Web Services",
	"gcp": "Google Cloud Platform",
	"oci": "Oracle Cloud Infrastructure",
}

// seededConfig is written at first boot unless an operator already set the
// key. Values are strings; consumers parse them leniently.
var seededConfig = map[string]string{
	types.ConfigSagaEnabled:            "true",
	types.ConfigSagaTimeoutSeconds:     "300",
	types.ConfigMulticloudEnabled:      "true",
	types.ConfigTrafficDefaultProvider: "oci-dns",
}

// Seed writes the first-boot defaults: runtime config keys, provider rows
// derived from the scheduling pool, per-tier DR policies and, when auth is
// enabled, the admin API token. Existing rows are never overwritten, so
// operator edits survive restarts. In HA mode only the leader seeds;
// followers receive the rows through the log.
func (m *Manager) Seed(model *policy.Model) error {
	if m.raft != nil && !m.IsLeader() {
		return nil
	}
	store := m.Store()

	for key, value := range seededConfig {
		if err := seedConfig(store, key, value); err != nil {
			return err
		}
	}

	if err := m.seedProviders(store, model); err != nil {
		return err
	}
	if err := seedDRPolicies(store, model); err != nil {
		return err
	}

	if m.cfg.Auth.Enabled {
		if err := m.seedAdminToken(store); err != nil {
			return err
		}
	}
	return nil
}

// seedProviders creates one provider row per pool provider, with the
// regions the candidate pool names for it and a conventional reference to
// its credentials entry. A healthy provider-health row is seeded alongside
// so the admin surface reflects the scheduler's optimistic default.
func (m *Manager) seedProviders(store storage.Store, model *policy.Model) error {
	regions := make(map[string][]string)
	for _, cand := range model.Candidates() {
		regions[cand.Provider] = append(regions[cand.Provider], cand.Region)
	}

	for _, name := range model.Providers() {
		if _, err := store.GetProvider(name); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("seed provider %s: %w", name, err)
		}

		display, ok := providerDisplayNames[name]
		if !ok {
			display = name
		}
		provider := &types.ProviderDefinition{
			Name:           name,
			DisplayName:    display,
			Enabled:        true,
			CredentialsRef: name + "-credentials",
			Regions:        lo.Uniq(regions[name]),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := store.CreateProvider(provider); err != nil {
			return fmt.Errorf("seed provider %s: %w", name, err)
		}
		m.logger.Info().Str("provider", name).Msg("Seeded provider")

		if _, err := store.GetProviderHealth(name); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("seed provider health %s: %w", name, err)
		}
		health := &types.ProviderHealth{
			Provider:  name,
			Healthy:   true,
			UpdatedAt: time.Now().UTC(),
		}
		if err := store.SetProviderHealth(health); err != nil {
			return fmt.Errorf("seed provider health %s: %w", name, err)
		}
	}
	return nil
}

// seedDRPolicies writes the default disaster-recovery policy for every tier
// that does not already have one.
func seedDRPolicies(store storage.Store, model *policy.Model) error {
	for _, tier := range model.Tiers() {
		if _, err := store.GetDRPolicy(tier.Name); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("seed dr policy %s: %w", tier.Name, err)
		}
		if err := store.SetDRPolicy(replication.DefaultPolicy(tier)); err != nil {
			return fmt.Errorf("seed dr policy %s: %w", tier.Name, err)
		}
	}
	return nil
}

// seedAdminToken generates the admin API bearer token once and stores it
// under the auth.admin_token config key. The plaintext is logged a single
// time; after that the operator reads it from the store.
func (m *Manager) seedAdminToken(store storage.Store) error {
	if _, err := store.GetConfig(types.ConfigAuthAdminToken); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("seed admin token: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("seed admin token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := store.SetConfig(types.ConfigAuthAdminToken, token); err != nil {
		return fmt.Errorf("seed admin token: %w", err)
	}

	m.logger.Info().
		Str("admin_token", token).
		Msg("Generated admin API token; it is not shown again")
	return nil
}

// seedConfig writes one config key unless it already exists.
func seedConfig(store storage.Store, key, value string) error {
	if _, err := store.GetConfig(key); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("seed config %s: %w", key, err)
	}
	if err := store.SetConfig(key, value); err != nil {
		return fmt.Errorf("seed config %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFoundError
	return errors.As(err, &nf)
}
