package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fuelpanel/internal/config"
	apierrors "fuelpanel/internal/errors"
	"fuelpanel/internal/middleware"
)

// RouterConfig carries everything the status API is built from. Hub, System,
// Metrics, WebSocket and OTel are optional.
type RouterConfig struct {
	Runs      RunService
	Jobs      JobService
	Hub       Hub
	System    SystemStatsSource
	Metrics   http.Handler
	WebSocket http.Handler
	OTel      *middleware.OTelMiddleware
	Server    config.ServerConfig
	Logger    *slog.Logger
	// IncludeStack adds stack traces to problem responses
	IncludeStack bool
}

// NewRouter wires the handlers and the middleware chain
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errorHandler := apierrors.NewErrorHandler(logger, cfg.IncludeStack)
	validation := middleware.NewValidationMiddleware(logger, errorHandler)
	query := middleware.NewQueryParamValidator(logger, errorHandler)

	runs := NewRunsHandler(cfg.Runs, cfg.Jobs, cfg.Hub, validation, errorHandler, logger)
	jobs := NewJobsHandler(cfg.Jobs, query, errorHandler, logger)
	closing := NewClosingHandler(cfg.Runs, errorHandler)
	health := NewHealthHandler(cfg.Runs, cfg.Hub, cfg.System, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.OTel != nil {
		r.Use(cfg.OTel.Handler)
	}
	r.Use(apierrors.NewErrorMiddleware(errorHandler, logger).Handler)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get("/api/health", health.HealthCheck)
	r.Get("/api/health/live", health.LivenessCheck)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger).Handler)
		}
		r.Mount("/runs", runs.Routes())
		r.Mount("/jobs", jobs.Routes())
		r.Get("/closing", closing.GetClosing)
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.WebSocket != nil {
		r.With(middleware.WebSocketTraceMiddleware(logger)).Method(http.MethodGet, "/ws", cfg.WebSocket)
	}

	return r
}
