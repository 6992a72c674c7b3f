package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fuelpanel/internal/config"
	"fuelpanel/internal/exporter"
	"fuelpanel/internal/files"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/middleware"
	"fuelpanel/internal/operations"
	"fuelpanel/internal/scheduler"
	transport "fuelpanel/internal/transport/http"
	ws "fuelpanel/internal/websocket"
)

const (
	systemMetricsInterval = 15 * time.Second
	queueStopTimeout      = 30 * time.Second
)

// Options select the long running parts of the application
type Options struct {
	// Serve starts the status API
	Serve bool
	// Every queues a new-batches-only run at this interval; zero disables it
	Every time.Duration
	// IncludeStack adds stack traces to API problem responses
	IncludeStack bool
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Options       Options
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	Manager       *operations.Manager
	JobQueue      *operations.JobQueue
	Scheduler     *scheduler.Scheduler
	SystemMetrics *infrastructure.SystemMetricsCollector
	Router        http.Handler
	Server        *http.Server

	runTracer *operations.RunTracer
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      <-chan struct{}
}

// NewApplication creates the application from a validated configuration
func NewApplication(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger, opts Options) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if err := ws.InitOTelMetrics(providers.Meter); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Options:       opts,
		Logger:        logger,
		OTelProviders: providers,
	}

	if err := a.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if opts.Serve {
		a.setupServer()
	}
	return a, nil
}

// initializeServices builds the export chain, the run manager and the queue
func (a *Application) initializeServices(ctx context.Context) error {
	runCfg, err := operations.ConfigFrom(a.Config, a.Paths)
	if err != nil {
		return err
	}

	var uploader exporter.Uploader
	if a.Config.Export.S3.Enabled {
		client, err := exporter.NewS3Client(ctx, a.Config.Export.S3)
		if err != nil {
			return err
		}
		uploader = exporter.NewS3Uploader(client, a.Config.Export.S3, a.Logger)
	}

	fileManager := files.NewManager(a.Paths, a.Logger)
	exp := exporter.NewExporter(a.Config.Export, exporter.DefaultKeyColumns(), runCfg.Processing.Quantities,
		fileManager, uploader, a.Logger)

	a.runTracer, err = operations.NewRunTracer(a.OTelProviders)
	if err != nil {
		return err
	}

	a.WebSocketHub = ws.NewHub(a.Logger)
	a.Manager = operations.NewManager(runCfg, files.NewDiscovery(a.Paths.InputDir), exp, a.Paths.OutputDir,
		operations.WithHub(a.WebSocketHub),
		operations.WithTracer(a.runTracer),
		operations.WithLogger(a.Logger),
	)
	a.JobQueue = operations.NewJobQueue(a.Manager, a.Config.Server.QueueSize, a.Logger)

	if a.Options.Every > 0 {
		a.Scheduler = scheduler.New(a.JobQueue, a.Options.Every, a.Logger)
	}

	a.SystemMetrics, err = infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, systemMetricsInterval)
	if err != nil {
		return err
	}
	return nil
}

// setupServer builds the status API router and the HTTP server
func (a *Application) setupServer() {
	a.Router = transport.NewRouter(transport.RouterConfig{
		Runs:         a.Manager,
		Jobs:         a.JobQueue,
		Hub:          a.WebSocketHub,
		System:       a.SystemMetrics,
		Metrics:      a.OTelProviders.PrometheusHTTP,
		WebSocket:    ws.Handler(a.WebSocketHub, a.Config.Server.AllowedOrigins, a.Logger),
		OTel:         middleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.runTracer.Metrics(), a.Logger),
		Server:       a.Config.Server,
		Logger:       a.Logger,
		IncludeStack: a.Options.IncludeStack,
	})

	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// RunOnce processes the input directory a single time, synchronously
func (a *Application) RunOnce(ctx context.Context, req operations.RunRequest) (*operations.RunSummary, error) {
	a.WebSocketHub.Start()
	defer a.WebSocketHub.Stop()
	return a.Manager.Run(ctx, req)
}

// Start starts the background services and queues the initial run. A
// server error cancels the application context.
func (a *Application) Start(ctx context.Context, initial operations.RunRequest) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = ctx.Done()

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Bool("serve", a.Server != nil),
		slog.Duration("every", a.Options.Every))

	a.WebSocketHub.Start()
	a.JobQueue.Start(ctx)
	go a.SystemMetrics.Start(ctx)

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if a.Server != nil {
		listener, err := net.Listen("tcp", a.Server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
		}
		a.Server.Addr = listener.Addr().String()
		go func() {
			if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
				a.cancel()
			}
		}()
		a.Logger.InfoContext(ctx, "Status API listening", slog.String("address", a.Server.Addr))
	}

	if _, err := a.JobQueue.Enqueue(initial); err != nil {
		return fmt.Errorf("failed to queue initial run: %w", err)
	}
	return nil
}

// Stop gracefully stops the application. It is safe to call more than once.
func (a *Application) Stop(ctx context.Context) error {
	var stopErr error
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		if a.Server != nil {
			if err := a.Server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		if a.Scheduler != nil {
			a.Scheduler.Stop()
		}
		if a.cancel != nil {
			a.cancel()
		}
		if err := a.JobQueue.Stop(queueStopTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
		}
		a.SystemMetrics.Stop()
		a.WebSocketHub.Stop()

		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
		a.Logger.InfoContext(ctx, "Application shutdown complete")
	})
	return stopErr
}

// Run starts the application and blocks until an interrupt or ctx is done
func (a *Application) Run(ctx context.Context, initial operations.RunRequest) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, initial); err != nil {
		_ = a.Stop(context.Background())
		return err
	}

	<-a.done
	a.Logger.Info("Received shutdown signal")
	return a.Stop(context.Background())
}
