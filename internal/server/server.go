// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/lendrisk/internal/chaindata"
	"github.com/mbd888/lendrisk/internal/circuitbreaker"
	"github.com/mbd888/lendrisk/internal/config"
	"github.com/mbd888/lendrisk/internal/explain"
	"github.com/mbd888/lendrisk/internal/health"
	"github.com/mbd888/lendrisk/internal/logging"
	"github.com/mbd888/lendrisk/internal/metrics"
	"github.com/mbd888/lendrisk/internal/model"
	"github.com/mbd888/lendrisk/internal/realtime"
	"github.com/mbd888/lendrisk/internal/risk"
	"github.com/mbd888/lendrisk/internal/traces"
)

// healthCheckAddress is the zero address, used to probe RPC connectivity.
const healthCheckAddress = "0x0000000000000000000000000000000000000000"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	fetcher      chaindata.Fetcher
	ethFetcher   *chaindata.EthFetcher // nil when RPC disabled or a fetcher was injected
	scorer       *risk.Scorer
	facade       *risk.Facade
	hub          *realtime.Hub
	breaker      *circuitbreaker.Breaker
	healthReg    *health.Registry
	tiers        []string
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	stopTraces   func(context.Context) error
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithFetcher sets a custom blockchain data fetcher (for testing)
func WithFetcher(f chaindata.Fetcher) Option {
	return func(s *Server) {
		s.fetcher = f
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set fetcher/logger)
	for _, opt := range opts {
		opt(s)
	}

	engine := explain.NewEngine()

	// Build the scoring chain in fallback order: remote, local model, mock.
	var strategies []risk.Strategy
	var localModel *model.Model

	if cfg.ModelAPI != "" {
		s.breaker = circuitbreaker.New(5, 30*time.Second)
		strategies = append(strategies, risk.NewRemoteStrategy(cfg.ModelAPI, cfg.RemoteTimeout, s.breaker, engine))
		s.tiers = append(s.tiers, risk.TierRemote)
		s.logger.Info("remote scoring enabled", "endpoint", cfg.ModelAPI)
	}

	if cfg.UseCachedModel {
		m, err := model.Load(cfg.ModelPath)
		if err != nil {
			s.logger.Warn("local model unavailable", "path", cfg.ModelPath, "error", err)
		} else {
			localModel = m
			strategies = append(strategies, risk.NewLocalModelStrategy(m, engine))
			s.tiers = append(s.tiers, risk.TierLocal)
			s.logger.Info("local model loaded", "path", cfg.ModelPath)
		}
	}

	if cfg.MockData {
		strategies = append(strategies, risk.NewMockStrategy(engine))
		s.tiers = append(s.tiers, risk.TierMock)
		s.logger.Info("mock scoring enabled")
	}

	if len(strategies) == 0 {
		return nil, fmt.Errorf("no scoring tier available: set AI_MODEL_API, USE_CACHED_MODEL, or MOCK_DATA")
	}

	// Blockchain data source (optional; synthetic data covers the gap)
	if s.fetcher == nil && cfg.RPCURL != "" && !cfg.MockData {
		f, err := chaindata.NewEthFetcher(cfg.RPCURL, cfg.RemoteTimeout)
		if err != nil {
			s.logger.Warn("blockchain RPC unavailable, assessments will use synthetic data",
				"rpc_url", cfg.RPCURL, "error", err)
		} else {
			s.ethFetcher = f
			s.fetcher = f
			s.logger.Info("blockchain data source connected",
				"rpc_url", cfg.RPCURL, "chain_id", cfg.ChainID)
		}
	}
	if s.fetcher == nil {
		s.logger.Info("using synthetic blockchain data")
	}

	cache := risk.NewMemoryCache(cfg.CacheTTL)
	s.scorer = risk.NewScorer(s.fetcher, cache, strategies...)
	s.facade = risk.NewFacade(s.scorer)

	// Create realtime hub for WebSocket streaming
	s.hub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	s.setupHealthChecks(localModel)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) setupHealthChecks(localModel *model.Model) {
	s.healthReg = health.NewRegistry()

	// The scoring chain itself is the one subsystem nothing covers for.
	tiers := strings.Join(s.tiers, ",")
	s.healthReg.Register("scoring", func(ctx context.Context) health.Status {
		return health.Status{Name: "scoring", State: health.StateOK, Detail: tiers}
	})

	// Everything below has a fallback: synthetic data for the chain, the
	// next tier for the model and the remote endpoint. Their failures
	// degrade the service without taking it down.
	if s.ethFetcher != nil {
		f := s.ethFetcher
		s.healthReg.RegisterOptional("chain", func(ctx context.Context) health.Status {
			if _, err := f.Fetch(ctx, healthCheckAddress); err != nil {
				return health.Down("chain", err.Error())
			}
			return health.OK("chain")
		})
	}

	if s.cfg.UseCachedModel {
		loaded := localModel != nil
		s.healthReg.RegisterOptional("model", func(ctx context.Context) health.Status {
			if !loaded {
				return health.Down("model", "artifact not loaded")
			}
			return health.OK("model")
		})
	}

	if s.breaker != nil {
		endpoint := s.cfg.ModelAPI
		breaker := s.breaker
		s.healthReg.RegisterOptional("remote_scoring", func(ctx context.Context) health.Status {
			switch breaker.State(endpoint) {
			case circuitbreaker.StateOpen:
				return health.Down("remote_scoring", "circuit open")
			case circuitbreaker.StateHalfOpen:
				return health.Degraded("remote_scoring", "circuit half-open")
			default:
				return health.OK("remote_scoring")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time assessment streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	riskHandler := risk.NewHandler(s.facade, s.hub)
	riskHandler.RegisterRoutes(v1)

	v1.GET("/realtime/stats", s.realtimeStatsHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse is the detailed health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	state, checks := s.healthReg.CheckAll(ctx)

	// Degraded still serves traffic; only a down required subsystem is 503.
	status := "healthy"
	httpStatus := http.StatusOK
	switch state {
	case health.StateDegraded:
		status = "degraded"
	case health.StateDown:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":          "LendRisk",
		"description":   "Borrower risk assessment for on-chain lending",
		"version":       "0.1.0",
		"chain_id":      s.cfg.ChainID,
		"scoring_tiers": s.tiers,
	})
}

func (s *Server) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing is optional; only wired when an OTLP collector is configured
	if s.cfg.OTLPEndpoint != "" {
		stop, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
		if err != nil {
			s.logger.Warn("tracing disabled", "error", err)
		} else {
			s.stopTraces = stop
		}
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
			"tiers", s.tiers,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, tracing exporter)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Flush remaining spans
	if s.stopTraces != nil {
		if err := s.stopTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close RPC connection
	if s.ethFetcher != nil {
		s.ethFetcher.Close()
		s.logger.Info("RPC connection closed")
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
