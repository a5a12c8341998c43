// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator provides the coordination service for AleutianSwarm.
//
// This package contains the main service type that wires all components
// together: the Redis-backed lock engine, the GitHub remote, the dependency
// graph service, the activity feed, the background sweep scheduler, HTTP
// routing, and observability infrastructure.
//
// # Usage
//
//	cfg := coordinator.Config{Port: 12230, RedisAddr: "localhost:6379"}
//	svc, err := coordinator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/activity"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/coordinate"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/graph"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/handlers"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/kv"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/lock"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/observability"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/routes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/sweep"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the coordinator service.
//
// # Description
//
// Service abstracts the coordinator lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or encounters a
	//     fatal error
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds coordinator configuration options.
//
// # Description
//
// Config centralizes all configuration for the coordinator service. Values
// can be populated from environment variables, config files, or
// programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults. A reachable Redis is still
// required: New() fails when the initial ping does not succeed.
type Config struct {
	// Port is the HTTP server port. Default: 12230
	Port int

	// RedisAddr is the Redis host:port. Default: "localhost:6379"
	RedisAddr string

	// RedisPassword authenticates against Redis. Optional.
	RedisPassword string

	// RedisDB selects the logical Redis database. Default: 0
	RedisDB int

	// GitHubToken is the bearer token for the GitHub API.
	// Empty means unauthenticated access at a much smaller quota.
	GitHubToken string

	// GitHubAPIURL overrides the GitHub API endpoint, for GitHub
	// Enterprise deployments. Default: the public API.
	GitHubAPIURL string

	// SweepSecret guards the administrative cleanup endpoint.
	// Empty leaves the endpoint open.
	SweepSecret string

	// SweepInterval is how often the background sweeper runs.
	// Default: 1 minute
	SweepInterval time.Duration

	// SweepEnabled starts the background sweep scheduler.
	SweepEnabled bool

	// ActivityCapacity bounds the in-memory activity feed. Default: 1024
	ActivityCapacity int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: honors OTEL_EXPORTER_OTLP_ENDPOINT, then "localhost:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - Redis-backed advisory lock engine
//   - GitHub remote with head caching
//   - Dependency graph builder
//   - In-memory activity feed
//   - Background stale-lock sweeper
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config            Config
	router            *gin.Engine
	store             *kv.Redis
	github            *remote.GitHub
	engine            *lock.Engine
	graphs            *graph.Service
	ring              *activity.Ring
	coordinator       *coordinate.Coordinator
	handlers          *handlers.Handlers
	sweepScheduler    *sweep.Scheduler
	telemetryShutdown func(context.Context) error
	log               *logging.Logger
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new coordinator Service with the given configuration.
//
// # Description
//
// New initializes all coordinator components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and the Prometheus bridge
//  3. Initializes Prometheus metrics
//  4. Connects to Redis (fatal if unreachable)
//  5. Wires the lock engine, GitHub remote, graph service, activity feed,
//     and coordinator
//  6. Starts the background sweep scheduler when enabled
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run coordinator service
//   - error: Non-nil if initialization fails
//
// # Examples
//
//	cfg := Config{Port: 12230, RedisAddr: "localhost:6379", SweepEnabled: true}
//	svc, err := New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// # Assumptions
//
//   - Redis is reachable at the configured address
//   - Network is available for GitHub and OTel connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
		log:    logging.Default(),
	}

	// Initialize OpenTelemetry tracing and metrics export
	shutdown, err := observability.Init(context.Background(), s.telemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	// Initialize Prometheus metrics. Guarded so repeated construction in
	// tests does not trip promauto's duplicate registration panic.
	if observability.DefaultMetrics == nil {
		observability.InitMetrics()
		s.log.Info("initialized Prometheus metrics for coordination")
	}

	// Connect to Redis. The lock engine cannot run without it.
	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.initComponents()

	// Start the background sweeper
	if s.config.SweepEnabled {
		if err := s.initSweeper(); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to start sweep scheduler: %w", err)
		}
	}

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
//
// # Description
//
// Starts the Gin HTTP server on the configured port. This method blocks
// until the server stops due to error or shutdown signal. Cleanup is
// automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Info("starting coordinator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	return cfg
}

// telemetryConfig maps the service configuration onto the telemetry stack.
// Exporter selection stays with the standard OTel environment variables.
func (s *service) telemetryConfig() observability.TelemetryConfig {
	tcfg := observability.DefaultTelemetryConfig()
	if s.config.OTelEndpoint != "" {
		tcfg.OTLPEndpoint = s.config.OTelEndpoint
	}
	return tcfg
}

// initStore connects to Redis and verifies the connection with a ping.
func (s *service) initStore() error {
	store, err := kv.New(context.Background(), kv.Options{
		Addr:     s.config.RedisAddr,
		Password: s.config.RedisPassword,
		DB:       s.config.RedisDB,
	})
	if err != nil {
		return err
	}
	s.store = store
	s.log.Info("connected to Redis", "addr", s.config.RedisAddr, "db", s.config.RedisDB)
	return nil
}

// initComponents wires the lock engine, remote, graph service, activity
// feed, coordinator, and HTTP handlers. Must run after initStore.
func (s *service) initComponents() {
	s.engine = lock.NewEngine(s.store, s.log)
	s.github = remote.NewGitHub(remote.Options{
		Token:   s.config.GitHubToken,
		BaseURL: s.config.GitHubAPIURL,
	}, s.log)
	s.graphs = graph.NewService(s.store, s.github, s.engine, s.log, graph.DefaultConfig())
	s.ring = activity.NewRing(s.config.ActivityCapacity)
	s.coordinator = coordinate.New(s.engine, s.github, s.graphs, s.ring, s.log)
	s.handlers = handlers.New(s.coordinator, s.ring, s.store, s.log)
}

// initSweeper creates and starts the background sweep scheduler.
//
// # Assumptions
//
//   - SweepEnabled is true (checked by caller)
//   - The coordinator is initialized
func (s *service) initSweeper() error {
	cfg := sweep.DefaultConfig()
	cfg.Interval = s.config.SweepInterval

	s.sweepScheduler = sweep.NewScheduler(recordingSweeper{s.coordinator}, s.log, cfg)
	if err := s.sweepScheduler.Start(context.Background()); err != nil {
		return err
	}

	s.log.Info("sweep scheduler started", "interval", cfg.Interval.String())
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
//
// # Assumptions
//
//   - All dependencies (coordinator, handlers) are initialized
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("coordinator-service"))
	s.router.Use(observability.MetricsMiddleware())

	routes.SetupRoutes(s.router, s.handlers, s.config.SweepSecret)
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Stops the sweep
// scheduler, closes the Redis connection, and shuts down telemetry.
func (s *service) cleanup() {
	if s.sweepScheduler != nil {
		if err := s.sweepScheduler.Stop(); err != nil {
			s.log.Warn("sweep scheduler stop error", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn("redis close error", "error", err)
		}
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			s.log.Warn("telemetry shutdown error", "error", err)
		}
	}
}

// recordingSweeper feeds scheduled sweep outcomes into the metrics surface
// before returning them to the scheduler.
type recordingSweeper struct {
	coord *coordinate.Coordinator
}

func (r recordingSweeper) Sweep(ctx context.Context) (int, error) {
	cleaned, err := r.coord.Sweep(ctx)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSweep("scheduled", cleaned, err)
	}
	return cleaned, err
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
var _ sweep.Sweeper = recordingSweeper{}
