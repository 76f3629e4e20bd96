package framework

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cellgrid/strata/pkg/api"
	"github.com/cellgrid/strata/pkg/client"
	"github.com/cellgrid/strata/pkg/config"
	"github.com/cellgrid/strata/pkg/credentials"
	"github.com/cellgrid/strata/pkg/experiment"
	"github.com/cellgrid/strata/pkg/manager"
	"github.com/cellgrid/strata/pkg/metrics"
	"github.com/cellgrid/strata/pkg/orchestration"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/reconciler"
	"github.com/cellgrid/strata/pkg/replication"
	"github.com/cellgrid/strata/pkg/scheduler"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/traffic"
	"github.com/cellgrid/strata/pkg/types"
)

// Config tunes the harness assembly. Zero-valued fields fall back to fast
// test defaults.
type Config struct {
	// Model is the placement model. Nil uses the compiled-in pool.
	Model *policy.Model
	// AutoReady makes the memory provisioner report claims ready on the
	// first poll. Disable it to exercise the wait_ready step and the
	// reconciler's advance sweep.
	AutoReady bool
	// Auth seeds the admin token and enforces it on the admin routes.
	// The harness client carries the token; AnonymousClient does not.
	Auth bool
	// ReconcileEvery starts the background reconciler at the given
	// interval. Zero leaves it stopped.
	ReconcileEvery time.Duration
	// Saga retry tuning.
	ApplyAttempts uint
	WaitAttempts  uint
	WaitDelay     time.Duration
}

// DefaultConfig is the assembly most tests want: instant readiness, no
// auth, no background reconciler, and saga retries tight enough that a
// failing create returns in tens of milliseconds.
func DefaultConfig() *Config {
	return &Config{AutoReady: true}
}

// Harness is one fully wired control plane. Every seam tests poke at is
// exported: the store for state assertions, the provisioner for failure
// injection, the registries for direct manipulation, and the HTTP client
// for the operator's view.
type Harness struct {
	t *testing.T

	Manager      *manager.Manager
	Store        storage.Store
	Model        *policy.Model
	Registry     *products.Registry
	Health       *scheduler.HealthRegistry
	Experiments  *experiment.Registry
	Scheduler    *scheduler.Scheduler
	Provisioner  *provisioner.Memory
	Pairs        *replication.Manager
	Orchestrator *orchestration.Orchestrator
	Credentials  *credentials.Manager
	Reconciler   *reconciler.Reconciler

	URL        string
	AdminToken string
	Client     *client.Client
}

// New assembles the control plane the way the server command does, on a
// throwaway data directory, and tears everything down with the test.
func New(t *testing.T, cfg *Config) *Harness {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ApplyAttempts == 0 {
		cfg.ApplyAttempts = 2
	}
	if cfg.WaitAttempts == 0 {
		cfg.WaitAttempts = 3
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = 20 * time.Millisecond
	}

	base := config.Default()
	base.DataDir = t.TempDir()
	base.Standalone = true
	base.Auth.Enabled = cfg.Auth

	mgr, err := manager.New(base)
	if err != nil {
		t.Fatalf("assemble manager: %v", err)
	}
	t.Cleanup(func() {
		if err := mgr.Shutdown(); err != nil {
			t.Errorf("shutdown manager: %v", err)
		}
	})

	model := cfg.Model
	if model == nil {
		model = policy.Default()
	}
	if err := mgr.Seed(model); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	store := mgr.Store()

	health := scheduler.NewHealthRegistry()
	experiments := experiment.NewRegistry()
	sched := scheduler.New(model, health, experiments, experiment.NewAnalytics())

	var provOpts []provisioner.Option
	if cfg.AutoReady {
		provOpts = append(provOpts, provisioner.WithAutoReady())
	}
	prov := provisioner.NewMemory(provOpts...)

	registry := products.NewRegistry()
	pairs := replication.New(store, model, traffic.NewFactory(store).Default(), prov, mgr.Broker())
	orch := orchestration.New(store, sched, registry, prov, mgr.Broker(),
		orchestration.WithApplyAttempts(cfg.ApplyAttempts),
		orchestration.WithWaitPolicy(cfg.WaitAttempts, cfg.WaitDelay),
		orchestration.WithReplication(pairs),
	)
	creds := credentials.NewManager(store, mgr.Box())

	h := &Harness{
		t:            t,
		Manager:      mgr,
		Store:        store,
		Model:        model,
		Registry:     registry,
		Health:       health,
		Experiments:  experiments,
		Scheduler:    sched,
		Provisioner:  prov,
		Pairs:        pairs,
		Orchestrator: orch,
		Credentials:  creds,
	}

	if cfg.ReconcileEvery > 0 {
		h.Reconciler = reconciler.New(store, orch, pairs,
			reconciler.WithInterval(cfg.ReconcileEvery))
		h.Reconciler.Start()
		t.Cleanup(h.Reconciler.Stop)
	}

	// Same readiness registration the server command performs.
	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("scheduler", true, "")
	metrics.RegisterComponent("provisioner", true, "")

	var apiOpts []api.Option
	if cfg.Auth {
		entry, err := store.GetConfig(types.ConfigAuthAdminToken)
		if err != nil {
			t.Fatalf("read seeded admin token: %v", err)
		}
		h.AdminToken = entry.Value
		apiOpts = append(apiOpts, api.WithAdminToken(entry.Value))
	}
	server := api.NewServer(orch, sched, store, pairs, creds, mgr.Broker(), apiOpts...)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	h.URL = ts.URL

	clientOpts := []client.Option{client.WithTimeout(10 * time.Second)}
	if h.AdminToken != "" {
		clientOpts = append(clientOpts, client.WithToken(h.AdminToken))
	}
	h.Client = client.New(ts.URL, clientOpts...)
	return h
}

// AnonymousClient returns a client without the admin bearer token, for
// exercising the auth boundary.
func (h *Harness) AnonymousClient() *client.Client {
	return client.New(h.URL, client.WithTimeout(10*time.Second))
}
