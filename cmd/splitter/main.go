// Command splitter splits processed panels into one panel per quantity,
// keeping the station and time keys in every part.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fuelpanel/internal/config"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/services"
	"fuelpanel/internal/validation"
)

type options struct {
	in         string
	out        string
	tokens     string
	configPath string
	workers    int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("splitter", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.in, "in", "", "directory of processed panels (defaults to paths.output_dir)")
	fs.StringVar(&opts.out, "out", "", "target directory, one subdirectory per token (defaults to split next to the output directory)")
	fs.StringVar(&opts.tokens, "tokens", "", "comma separated split tokens (defaults to resample.split_tokens)")
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.IntVar(&opts.workers, "workers", 0, "files processed at once (0 uses every CPU)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// splitList parses a comma separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, opts, logger, os.Stdout)
	stop()
	if err != nil {
		logger.Error("Split failed", slog.String("error", err.Error()))
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
	infrastructure.CloseLogFile()
}

func run(ctx context.Context, cfg *config.Config, opts *options, logger *slog.Logger, stdout io.Writer) error {
	paths, err := cfg.Paths.Resolve("")
	if err != nil {
		return err
	}
	in, out := opts.in, opts.out
	if in == "" {
		in = paths.OutputDir
	}
	if out == "" {
		out = paths.ToolDir(config.SplitDirName)
	}
	tokens := cfg.Resample.SplitTokens
	if opts.tokens != "" {
		tokens = splitList(opts.tokens)
	}

	if err := validation.NewFileValidator(logger).ValidateOutputDirectory(out); err != nil {
		return err
	}

	service, err := services.NewPanelServiceFromConfig(cfg, paths, logger)
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		service.SetWorkers(opts.workers)
	}

	logger.Info("Splitting panels",
		slog.String("input_dir", in),
		slog.String("output_dir", out),
		slog.Any("tokens", tokens))

	report, err := service.Split(ctx, in, out, tokens)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Split %d files into %d panels\n", report.Files, len(report.Written))
	return nil
}
