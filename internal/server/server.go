// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/bedaniele0/fraud-detection/internal/config"
	"github.com/bedaniele0/fraud-detection/internal/decision"
	"github.com/bedaniele0/fraud-detection/internal/drift"
	"github.com/bedaniele0/fraud-detection/internal/health"
	"github.com/bedaniele0/fraud-detection/internal/logging"
	"github.com/bedaniele0/fraud-detection/internal/metrics"
	"github.com/bedaniele0/fraud-detection/internal/model"
	"github.com/bedaniele0/fraud-detection/internal/ratelimit"
	"github.com/bedaniele0/fraud-detection/internal/realtime"
	"github.com/bedaniele0/fraud-detection/internal/retry"
	"github.com/bedaniele0/fraud-detection/internal/security"
	"github.com/bedaniele0/fraud-detection/internal/threshold"
	"github.com/bedaniele0/fraud-detection/internal/traces"
)

// MaxRequestSize caps request bodies at 1MB; a full 1000-transaction batch
// is roughly 600KB.
const MaxRequestSize = 1 << 20

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg             *config.Config
	scorer          model.Scorer
	thresholdCell   *threshold.Cell
	decisionService *decision.Service
	driftMonitor    *drift.Monitor
	realtimeHub     *realtime.Hub
	healthRegistry  *health.Registry
	rateLimiter     *ratelimit.Limiter
	db              *sql.DB // nil if using file/memory stores
	router          *gin.Engine
	httpSrv         *http.Server
	logger          *slog.Logger
	tracesShutdown  func(context.Context) error
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run

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

// WithScorer sets a custom score provider (for testing)
func WithScorer(scorer model.Scorer) Option {
	return func(s *Server) {
		s.scorer = scorer
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	// Apply options first (may set scorer/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise file/memory)
	var thresholdStore threshold.Store
	var auditStore decision.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection; the database may still be coming up when we are
		// started alongside it, so retry with backoff.
		if err := retry.Do(ctx, 5, 500*time.Millisecond, db.Ping); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		pgThresholds := threshold.NewPostgresStore(db)
		if err := pgThresholds.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate threshold store", "error", err)
		}
		thresholdStore = pgThresholds

		pgDecisions := decision.NewPostgresStore(db)
		if err := pgDecisions.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate decision store", "error", err)
		}
		auditStore = pgDecisions
		s.logger.Info("decision audit trail enabled")
	} else {
		thresholdStore = threshold.NewFileStore(cfg.ThresholdPath)
		auditStore = decision.NewMemoryStore()
		s.logger.Info("using file-backed threshold storage (decisions will not persist)",
			"path", cfg.ThresholdPath)
	}

	// Threshold cell: restore the last committed snapshot, otherwise seed the
	// configured default so the API is decidable out of the box.
	s.thresholdCell = threshold.NewCell(thresholdStore)
	if err := s.thresholdCell.Restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore threshold: %w", err)
	}
	if !s.thresholdCell.Active() && cfg.SeedThreshold() {
		if _, err := s.thresholdCell.Set(ctx, cfg.DefaultThreshold); err != nil {
			return nil, fmt.Errorf("failed to seed default threshold: %w", err)
		}
		s.logger.Info("seeded default threshold", "threshold", cfg.DefaultThreshold)
	}
	if snap, err := s.thresholdCell.Get(); err == nil {
		metrics.ActiveThreshold.Set(snap.Value)
		s.logger.Info("threshold active", "threshold", snap.Value, "source", snap.Source)
	} else {
		s.logger.Warn("no threshold configured, decision endpoints will return 503")
	}

	// Create scorer if not injected
	if s.scorer == nil {
		if cfg.ModelPath != "" {
			m, err := model.LoadLogistic(cfg.ModelPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load model: %w", err)
			}
			s.scorer = m
			s.logger.Info("model loaded",
				"path", cfg.ModelPath,
				"type", m.Info().Type,
				"version", m.Info().Version,
			)
		} else {
			s.scorer = model.ConstantScorer{P: cfg.FallbackScore}
			s.logger.Warn("no MODEL_PATH set, using constant scorer", "score", cfg.FallbackScore)
		}
	}

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Drift monitor samples every served decision
	s.driftMonitor = drift.NewMonitor()

	// Decision service ties it all together
	s.decisionService = decision.NewService(s.scorer, s.thresholdCell, auditStore, s.logger).
		WithEvents(s.realtimeHub).
		WithObserver(s.driftMonitor)

	// Health checks
	s.healthRegistry = health.NewRegistry()
	s.healthRegistry.Register("threshold", health.ThresholdCheck(s.thresholdCell.Active))
	if s.db != nil {
		s.healthRegistry.Register("database", health.DatabaseCheck(s.db.PingContext))
	}

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

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
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

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(security.RequestSizeMiddleware(MaxRequestSize))

	// Rate limiting
	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	limiterCfg.BurstSize = s.cfg.RateLimitRPS
	s.rateLimiter = ratelimit.New(limiterCfg)
	s.router.Use(s.rateLimiter.Middleware())

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

	// Service banner
	s.router.GET("/", s.infoHandler)

	// WebSocket for real-time decision streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	s.router.GET("/ws/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})

	// V1 API group
	v1 := s.router.Group("/api/v1")

	decisionHandler := decision.NewHandler(s.decisionService)
	decisionHandler.RegisterRoutes(v1)

	thresholdHandler := threshold.NewHandler(s.thresholdCell).
		WithEvents(s.realtimeHub).
		WithCosts(s.cfg.FalsePositiveCost, s.cfg.FalseNegativeCost)
	thresholdHandler.RegisterRoutes(v1)

	driftHandler := drift.NewHandler(s.driftMonitor)
	driftHandler.RegisterRoutes(v1)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) infoHandler(c *gin.Context) {
	info := s.scorer.Info()
	c.JSON(http.StatusOK, gin.H{
		"name":          "fraud-detection",
		"description":   "Threshold-calibrated credit card fraud decision API",
		"version":       "0.1.0",
		"model_version": info.Version,
		"endpoints": gin.H{
			"predict":   "POST /api/v1/predict",
			"batch":     "POST /api/v1/predict/batch",
			"threshold": "GET/PUT /api/v1/model/threshold",
			"calibrate": "POST /api/v1/model/calibrate",
			"drift":     "GET /api/v1/monitoring/drift",
			"stream":    "GET /ws",
		},
	})
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthRegistry.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
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

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Distributed tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	shutdown, err := traces.Init(runCtx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesShutdown = shutdown
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
			"model", s.scorer.Info().Type,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Sample DB pool stats into Prometheus
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

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

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesShutdown != nil {
		if err := s.tracesShutdown(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// DecisionService returns the decision service (for calibration wiring in tests)
func (s *Server) DecisionService() *decision.Service {
	return s.decisionService
}

// DriftMonitor returns the drift monitor so reference windows can be installed
// after a calibration run.
func (s *Server) DriftMonitor() *drift.Monitor {
	return s.driftMonitor
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
