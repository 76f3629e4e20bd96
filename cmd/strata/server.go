package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cellgrid/strata/pkg/api"
	"github.com/cellgrid/strata/pkg/config"
	"github.com/cellgrid/strata/pkg/credentials"
	"github.com/cellgrid/strata/pkg/experiment"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/manager"
	"github.com/cellgrid/strata/pkg/metrics"
	"github.com/cellgrid/strata/pkg/orchestration"
	"github.com/cellgrid/strata/pkg/policy"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/reconciler"
	"github.com/cellgrid/strata/pkg/replication"
	"github.com/cellgrid/strata/pkg/scheduler"
	"github.com/cellgrid/strata/pkg/security"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/traffic"
	"github.com/cellgrid/strata/pkg/types"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a control plane node",
	Long: `Run a Strata control node: the HTTP API, the weighted scheduler,
the saga executor and the background reconciler, backed by an embedded
BoltDB store or PostgreSQL. With raft enabled the node replicates every
store write through consensus and serves as part of an HA control plane.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().String("config", "", "Path to YAML config file")
	serverCmd.Flags().String("listen", "", "API listen address (overrides config)")
	serverCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	serverCmd.Flags().Bool("standalone", false, "Provision claims in-process; they become ready immediately")
	serverCmd.Flags().String("join-token", "", "Join an existing cluster with a token minted on the leader")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.Format == "json",
	})
	logger := log.WithComponent("server")

	mgr, err := manager.New(cfg)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	if cfg.Raft.Enabled {
		if err := startRaft(cmd, cfg, mgr); err != nil {
			return err
		}
	}

	store := mgr.Store()

	model, err := loadModel(cfg)
	if err != nil {
		return err
	}
	if err := mgr.Seed(model); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	registry := products.NewRegistry()
	if cfg.ProductsDir != "" {
		if err := loadCatalogs(registry, cfg.ProductsDir); err != nil {
			return err
		}
	}

	healthReg := scheduler.NewHealthRegistry()
	experiments := experiment.NewRegistry()
	if err := restoreRegistries(store, healthReg, experiments, logger); err != nil {
		return err
	}
	sched := scheduler.New(model, healthReg, experiments, experiment.NewAnalytics())

	prov := provisioner.NewMemory(provisionerOptions(cfg)...)
	if !cfg.Standalone {
		// Without a provisioner integration the control plane records
		// placement intent: sagas complete with applied=false and the
		// reconciler promotes placements once a provisioner is reachable.
		prov.SetUnavailable(true)
		logger.Warn().Msg("No provisioner configured; placements record intent only")
	}

	pairs := replication.New(store, model, traffic.NewFactory(store).Default(), prov, mgr.Broker())

	orch := orchestration.New(store, sched, registry, prov, mgr.Broker(),
		orchestration.WithApplyAttempts(uint(cfg.Saga.ApplyAttempts)),
		orchestration.WithWaitPolicy(uint(cfg.Saga.ReadyAttempts), cfg.Saga.ReadyDelay()),
		orchestration.WithReplication(pairs),
	)

	creds := credentials.NewManager(store, mgr.Box())

	reconOpts := []reconciler.Option{}
	if !cfg.Standalone {
		reconOpts = append(reconOpts, reconciler.WithLagProbe(&reconciler.EndpointProbe{}))
	}
	recon := reconciler.New(store, orch, pairs, reconOpts...)
	recon.Start()

	collector := metrics.NewCollector(store)
	collector.Start()

	var raftCollector *manager.MetricsCollector
	if cfg.Raft.Enabled {
		raftCollector = manager.NewMetricsCollector(mgr)
		raftCollector.Start()
	}

	// Readiness gates on the assembled components; raft only counts when
	// the node runs in HA mode.
	metrics.SetVersion(Version)
	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("scheduler", true, "")
	metrics.RegisterComponent("provisioner", true, "")
	if cfg.Raft.Enabled {
		metrics.RegisterComponent("raft", true, "")
	}

	apiOpts := []api.Option{}
	if cfg.Raft.Enabled {
		apiOpts = append(apiOpts, api.WithCluster(mgr))
	}
	if cfg.Auth.Enabled {
		token, err := adminToken(store)
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, api.WithAdminToken(token))
	}
	server := api.NewServer(orch, sched, store, pairs, creds, mgr.Broker(), apiOpts...)

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			tlsConf, err := serverTLS(cfg, mgr.Box())
			if err != nil {
				errCh <- err
				return
			}
			errCh <- server.StartTLS(cfg.Listen, tlsConf)
			return
		}
		errCh <- server.Start(cfg.Listen)
	}()

	logger.Info().
		Str("listen", cfg.Listen).
		Str("store", cfg.Store.Backend).
		Bool("raft", cfg.Raft.Enabled).
		Bool("standalone", cfg.Standalone).
		Str("version", Version).
		Msg("Control node running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("API server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API shutdown incomplete")
	}
	recon.Stop()
	collector.Stop()
	if raftCollector != nil {
		raftCollector.Stop()
	}
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("shutdown manager: %w", err)
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

// loadServerConfig reads the config file when given and applies flag
// overrides on top.
func loadServerConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("data-dir") {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		// The cert dir tracks the data dir unless the file pinned it.
		if cfg.TLS.CertDir == "" || cfg.TLS.CertDir == filepath.Join(cfg.DataDir, "certs") {
			cfg.TLS.CertDir = filepath.Join(dataDir, "certs")
		}
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("standalone") {
		cfg.Standalone, _ = cmd.Flags().GetBool("standalone")
	}
	if cfg.TLS.CertDir == "" {
		cfg.TLS.CertDir = filepath.Join(cfg.DataDir, "certs")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startRaft brings the node into the cluster: bootstrap the first node,
// join the rest through a peer, then wait for a leader before serving.
func startRaft(cmd *cobra.Command, cfg *config.Config, mgr *manager.Manager) error {
	joinToken, _ := cmd.Flags().GetString("join-token")
	switch {
	case cfg.Raft.Bootstrap:
		if err := mgr.Bootstrap(); err != nil {
			return err
		}
	case joinToken != "":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mgr.Join(ctx, joinToken); err != nil {
			return err
		}
	default:
		return errors.New("raft is enabled but the node is neither bootstrapping nor joining: set raft.bootstrap or pass --join-token")
	}
	return mgr.WaitForLeader(10 * time.Second)
}

func loadModel(cfg *config.Config) (*policy.Model, error) {
	if cfg.PolicyFile == "" {
		return policy.Default(), nil
	}
	model, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", cfg.PolicyFile, err)
	}
	return model, nil
}

// loadCatalogs overlays every YAML catalog in dir onto the built-in
// products, in lexical order so overrides are deterministic.
func loadCatalogs(registry *products.Registry, dir string) error {
	yamls, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("scan product catalogs: %w", err)
	}
	ymls, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return fmt.Errorf("scan product catalogs: %w", err)
	}
	paths := append(yamls, ymls...)
	sort.Strings(paths)

	for _, path := range paths {
		if err := registry.LoadCatalog(path); err != nil {
			return fmt.Errorf("load product catalog %s: %w", path, err)
		}
	}
	return nil
}

func provisionerOptions(cfg *config.Config) []provisioner.Option {
	if cfg.Standalone {
		return []provisioner.Option{provisioner.WithAutoReady()}
	}
	return nil
}

// restoreRegistries replays persisted operator state into the in-memory
// registries the scheduler consults: provider health rows, experiments and
// feature flags. A malformed experiment row is skipped, not fatal.
func restoreRegistries(store storage.Store, health *scheduler.HealthRegistry, experiments *experiment.Registry, logger zerolog.Logger) error {
	rows, err := store.ListProviderHealth()
	if err != nil {
		return fmt.Errorf("restore provider health: %w", err)
	}
	for _, row := range rows {
		health.SetProviderHealth(row.Provider, row.Healthy)
	}

	exps, err := store.ListExperiments()
	if err != nil {
		return fmt.Errorf("restore experiments: %w", err)
	}
	for _, exp := range exps {
		if err := experiments.Create(exp); err != nil {
			logger.Warn().Err(err).Str("experiment", exp.ID).Msg("Skipping stored experiment")
		}
	}

	flags, err := store.ListFlags()
	if err != nil {
		return fmt.Errorf("restore feature flags: %w", err)
	}
	for name, enabled := range flags {
		experiments.SetFlag(name, enabled)
	}
	return nil
}

// adminToken reads the seeded admin token. Followers may briefly lag the
// leader's seed, so the read retries for a few seconds before failing.
func adminToken(store storage.Store) (string, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		entry, err := store.GetConfig(types.ConfigAuthAdminToken)
		if err == nil && entry.Value != "" {
			return entry.Value, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("auth is enabled but %s is not in the store", types.ConfigAuthAdminToken)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// serverTLS loads or creates the node CA and issues the API server
// certificate for the listen address.
func serverTLS(cfg *config.Config, box *security.Box) (*tls.Config, error) {
	dir := cfg.TLS.CertDir
	var ca *security.CertAuthority
	if security.CAExists(dir) {
		loaded, err := security.LoadCertAuthority(dir, box)
		if err != nil {
			return nil, fmt.Errorf("load certificate authority: %w", err)
		}
		ca = loaded
	} else {
		ca = security.NewCertAuthority()
		if err := ca.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize certificate authority: %w", err)
		}
		if err := ca.SaveToDir(dir, box); err != nil {
			return nil, fmt.Errorf("persist certificate authority: %w", err)
		}
	}

	host, _, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		host = cfg.Listen
	}
	dnsNames := []string{"localhost"}
	ips := []net.IP{net.ParseIP("127.0.0.1")}
	if ip := net.ParseIP(host); ip != nil {
		ips = append(ips, ip)
	} else if host != "" {
		dnsNames = append(dnsNames, host)
	}

	cert, err := ca.IssueServerCertificate("strata-api", dnsNames, ips)
	if err != nil {
		return nil, fmt.Errorf("issue server certificate: %w", err)
	}
	return security.ServerTLSConfig(cert), nil
}
