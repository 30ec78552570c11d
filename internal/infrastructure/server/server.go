package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpHandlers "github.com/aeonplan/core/internal/adapters/http"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/config"
	"github.com/aeonplan/core/internal/infrastructure/logger"
)

// HealthChecker is a dependency probed by the health endpoints
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// StatsProvider reports runtime statistics for /health/detailed
type StatsProvider interface {
	Stats() map[string]interface{}
}

// StatsFunc adapts a function to StatsProvider
type StatsFunc func() map[string]interface{}

func (f StatsFunc) Stats() map[string]interface{} { return f() }

// Deps are the collaborators the server exposes over HTTP
type Deps struct {
	Workspaces httpHandlers.Workspaces
	// Snapshots may be nil when fan-out is disabled.
	Snapshots httpHandlers.SnapshotReader
	// Registry is shared with the sync coordinator so its collectors are served on /metrics.
	Registry *prometheus.Registry
	Checks   map[string]HealthChecker
	Stats    map[string]StatsProvider
}

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	deps   Deps
}

// CustomValidator wraps the validator
type CustomValidator struct{}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return entities.Validator().Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, appLogger *logger.Logger) (*Server, error) {
	if deps.Workspaces == nil {
		return nil, fmt.Errorf("server: workspaces are required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	e := echo.New()
	e.Validator = &CustomValidator{}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger.WithComponent("http"),
		deps:   deps,
	}

	server.setupMiddleware()
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}
	server.setupRoutes()

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	v1 := s.echo.Group("/api/v1", httpHandlers.Identity(s.config.Security.UserHeader))
	httpHandlers.RegisterRoutes(v1,
		httpHandlers.NewWorkspaceHandler(s.deps.Workspaces, s.deps.Snapshots, s.logger),
		httpHandlers.NewBoardHandler(s.deps.Workspaces, s.logger),
		httpHandlers.NewTimelineHandler(s.deps.Workspaces, s.logger),
	)
}

func (s *Server) setupMetrics() {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	s.deps.Registry.MustRegister(requestsTotal, requestDuration)
	s.echo.Use(metricsMiddleware(requestsTotal, requestDuration))

	metricsHandler := promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// runChecks probes every dependency; ok is false if any of them failed
func (s *Server) runChecks(ctx context.Context) (map[string]interface{}, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok := true
	checks := make(map[string]interface{}, len(s.deps.Checks))
	for name, checker := range s.deps.Checks {
		if err := checker.HealthCheck(ctx); err != nil {
			ok = false
			checks[name] = map[string]string{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]string{"status": "ok"}
	}
	return checks, ok
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	checks, ok := s.runChecks(c.Request().Context())
	status := "ok"
	if !ok {
		status = "error"
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}
	if len(s.deps.Stats) > 0 {
		stats := make(map[string]interface{}, len(s.deps.Stats))
		for name, p := range s.deps.Stats {
			stats[name] = p.Stats()
		}
		response["stats"] = stats
	}

	if ok {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if _, ok := s.runChecks(c.Request().Context()); !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}
