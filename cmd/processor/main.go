// Command processor reconstructs fuel price panels from the raw daily price
// batches. It runs once by default; -serve keeps a status API up and -every
// re-runs periodically for newly arrived batches.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fuelpanel/internal/app"
	"fuelpanel/internal/config"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/operations"
	"fuelpanel/internal/validation"
)

// options are the command line flags
type options struct {
	in         string
	out        string
	meta       string
	configPath string
	serve      bool
	every      time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.in, "in", "", "input directory of raw batch files (overrides paths.input_dir)")
	fs.StringVar(&opts.out, "out", "", "output directory for processed panels (overrides paths.output_dir)")
	fs.StringVar(&opts.meta, "meta", "", "directory for metadata and closing history (overrides paths.metadata_dir)")
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.BoolVar(&opts.serve, "serve", false, "serve the status API until interrupted")
	fs.DurationVar(&opts.every, "every", 0, "re-run for new batches at this interval, e.g. 1h")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.every < 0 || (opts.every > 0 && opts.every < config.MinScheduleInterval) {
		return nil, fmt.Errorf("-every must be 0 or at least %s", config.MinScheduleInterval)
	}
	return opts, nil
}

// loadConfig loads the configuration and applies the path flags
func loadConfig(opts *options) (*config.Config, *config.Paths, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.in != "" {
		cfg.Paths.InputDir = opts.in
	}
	if opts.out != "" {
		cfg.Paths.OutputDir = opts.out
	}
	if opts.meta != "" {
		cfg.Paths.MetadataDir = opts.meta
	}

	paths, err := cfg.Paths.Resolve("")
	if err != nil {
		return nil, nil, err
	}
	return cfg, paths, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg, paths, err := loadConfig(opts)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, paths, opts, logger)
	stop()
	if err != nil {
		logger.Error("Processor failed", slog.String("error", err.Error()))
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, paths *config.Paths, opts *options, logger *slog.Logger) error {
	validator := validation.NewFileValidator(logger)
	if _, err := validator.ValidateInputDirectory(paths.InputDir, config.BatchExtCSV, config.BatchExtXLSX); err != nil {
		return err
	}
	for _, dir := range []string{paths.OutputDir, paths.MetadataDir} {
		if err := validator.ValidateOutputDirectory(dir); err != nil {
			return err
		}
	}

	application, err := app.NewApplication(ctx, cfg, paths, logger, app.Options{
		Serve: opts.serve,
		Every: opts.every,
	})
	if err != nil {
		return err
	}

	initial := operations.RunRequest{Trigger: "cli"}
	if opts.serve || opts.every > 0 {
		return application.Run(ctx, initial)
	}

	defer application.Stop(context.Background())
	summary, err := application.RunOnce(ctx, initial)
	if summary != nil {
		logSummary(logger, summary)
	}
	return err
}

func logSummary(logger *slog.Logger, summary *operations.RunSummary) {
	for _, f := range summary.Failed {
		logger.Warn("Batch rejected",
			slog.String("batch_id", f.BatchID),
			slog.String("kind", f.Kind),
			slog.String("reason", f.Reason))
	}
	logger.Info("Run finished",
		slog.String("run_id", summary.ID),
		slog.String("status", string(summary.Status)),
		slog.Int("discovered", summary.Discovered),
		slog.Int("processed", len(summary.Processed)),
		slog.Int("failed", len(summary.Failed)),
		slog.Duration("duration", summary.Duration),
		slog.String("metadata_csv", summary.Files.MetadataCSV),
		slog.String("closing_history", summary.Files.ClosingCSV))
}
