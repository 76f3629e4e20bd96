package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/credentials"
	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/manager"
	"github.com/cellgrid/strata/pkg/metrics"
	"github.com/cellgrid/strata/pkg/orchestration"
	"github.com/cellgrid/strata/pkg/replication"
	"github.com/cellgrid/strata/pkg/scheduler"
	"github.com/cellgrid/strata/pkg/storage"
)

// Server exposes the control plane over HTTP: the developer-facing
// provisioning API, the operator surface under /admin, replication
// operations, and the health and metrics endpoints.
type Server struct {
	orch    *orchestration.Orchestrator
	sched   *scheduler.Scheduler
	store   storage.Store
	pairs   *replication.Manager
	creds   *credentials.Manager
	broker  *events.Broker
	cluster *manager.Manager
	logger  zerolog.Logger

	adminToken string
	httpServer *http.Server
}

// Option configures optional server behavior.
type Option func(*Server)

// WithAdminToken requires the given bearer token on /api/v1/admin routes.
// An empty token leaves the admin surface open.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

// WithCluster enables the cluster routes backed by the HA manager. Without
// it the cluster surface reports that HA mode is off.
func WithCluster(mgr *manager.Manager) Option {
	return func(s *Server) { s.cluster = mgr }
}

// NewServer creates a new API server
func NewServer(orch *orchestration.Orchestrator, sched *scheduler.Scheduler, store storage.Store, pairs *replication.Manager, creds *credentials.Manager, broker *events.Broker, opts ...Option) *Server {
	s := &Server{
		orch:   orch,
		sched:  sched,
		store:  store,
		pairs:  pairs,
		creds:  creds,
		broker: broker,
		logger: log.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the configured HTTP handler. Exposed separately from
// Start so tests can drive the router through httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", s.handleListProducts)

		// Product aliases kept for the developer contract; the generic
		// /services tree serves any registered product.
		r.Post("/databases", s.handleCreateDatabase)
		r.Post("/databases/{namespace}/{name}/failover", s.handleDatabaseFailover)
		r.Post("/apps", s.handleCreateApp)
		r.Post("/apps/{namespace}/{name}/failover", s.handleAppFailover)

		r.Route("/services/{product}", func(r chi.Router) {
			r.Post("/", s.handleCreateService)
			r.Post("/multicloud", s.handleMulticloudDeploy)
			r.Get("/{namespace}/{name}", s.handleServiceStatus)
			r.Post("/{namespace}/{name}/failover", s.handleServiceFailover)
		})

		r.Get("/providers/health", s.handleProvidersHealth)
		r.Get("/providers/{name}/health", s.handleProviderHealth)
		r.Put("/providers/{name}/health", s.handleSetProviderHealth)

		r.Get("/analytics", s.handleAnalytics)

		r.Get("/experiments", s.handleListExperiments)
		r.Post("/experiments", s.handleCreateExperiment)
		r.Get("/experiments/{id}", s.handleGetExperiment)
		r.Delete("/experiments/{id}", s.handleDeleteExperiment)

		r.Get("/flags", s.handleListFlags)
		r.Get("/flags/{name}", s.handleGetFlag)
		r.Put("/flags/{name}", s.handleSetFlag)
		r.Delete("/flags/{name}", s.handleDeleteFlag)

		r.Route("/replication", func(r chi.Router) {
			r.Get("/pairs", s.handleListPairs)
			r.Get("/pairs/{id}", s.handleGetPair)
			r.Post("/pairs/{id}/failover", s.handlePairFailover)
			r.Put("/pairs/{id}/lag", s.handleUpdateLag)
		})

		// Join stays outside /admin: the joining node holds a join token,
		// not the admin token.
		r.Route("/cluster", func(r chi.Router) {
			r.Get("/", s.handleClusterInfo)
			r.Post("/join", s.handleClusterJoin)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminAuth)

			r.Get("/config", s.handleListConfig)
			r.Get("/config/{key}", s.handleGetConfig)
			r.Put("/config/{key}", s.handleSetConfig)
			r.Delete("/config/{key}", s.handleDeleteConfig)

			r.Get("/providers", s.handleAdminListProviders)
			r.Post("/providers", s.handleAdminSaveProvider)
			r.Put("/providers/{name}", s.handleAdminUpdateProvider)
			r.Delete("/providers/{name}", s.handleAdminDeleteProvider)

			r.Get("/dr-policies", s.handleListDRPolicies)
			r.Get("/dr-policies/{tier}", s.handleGetDRPolicy)
			r.Put("/dr-policies/{tier}", s.handleSetDRPolicy)
			r.Delete("/dr-policies/{tier}", s.handleDeleteDRPolicy)

			r.Get("/sagas", s.handleListSagas)
			r.Get("/sagas/{id}", s.handleGetSaga)
			r.Post("/sagas/{id}/retry", s.handleRetrySaga)

			r.Get("/placements", s.handleListPlacements)
			r.Get("/placements/{id}", s.handleGetPlacement)

			r.Get("/audit-log", s.handleAuditLog)

			r.Get("/credentials", s.handleListCredentials)
			r.Get("/credentials/{provider}", s.handleGetCredentials)
			r.Post("/credentials", s.handleSaveCredentials)
			r.Delete("/credentials/{provider}", s.handleDeleteCredentials)
			r.Post("/credentials/{provider}/validate", s.handleValidateCredentials)

			r.Post("/cluster/join-token", s.handleClusterJoinToken)
			r.Delete("/cluster/servers/{id}", s.handleClusterRemoveServer)
		})
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTP API listening")
	return s.httpServer.ListenAndServe()
}

// StartTLS begins serving HTTPS on addr with the given TLS configuration.
// Blocks until the server stops or fails.
func (s *Server) StartTLS(addr string, tlsConf *tls.Config) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		TLSConfig:    tlsConf,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTPS API listening")
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully stops the HTTP server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestLogger records request logs and the API counters.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method).Observe(duration.Seconds())

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// adminAuth enforces the bearer token on admin routes when one is set.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.adminToken {
			respondError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
