// Command merger merges the panels of a directory into a single panel sorted
// by station and time. With tokens every token subdirectory is merged into
// its own <token>.csv.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
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
	fs := flag.NewFlagSet("merger", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.in, "in", "", "directory of panels (defaults to resampled next to the output directory)")
	fs.StringVar(&opts.out, "out", "", "target directory of merged files (defaults to merged next to the output directory)")
	fs.StringVar(&opts.tokens, "tokens", "", "comma separated token subdirectories (defaults to resample.split_tokens, \"-\" merges -in as a whole)")
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.IntVar(&opts.workers, "workers", 0, "files read at once (0 uses every CPU)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// sources lists the directories to merge. Each one is written to
// <out>/<directory name>.csv.
func sources(in, tokens string, defaults []string) []string {
	switch tokens {
	case "-":
		return []string{in}
	case "":
		tokens = strings.Join(defaults, ",")
	}
	var dirs []string
	for _, t := range strings.Split(tokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			dirs = append(dirs, filepath.Join(in, t))
		}
	}
	if len(dirs) == 0 {
		return []string{in}
	}
	return dirs
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
		logger.Error("Merge failed", slog.String("error", err.Error()))
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
		in = paths.ToolDir(config.ResampledDirName)
	}
	if out == "" {
		out = paths.ToolDir(config.MergedDirName)
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

	for _, dir := range sources(in, opts.tokens, cfg.Resample.SplitTokens) {
		target := filepath.Join(out, filepath.Base(dir)+config.BatchExtCSV)
		logger.Info("Merging panels",
			slog.String("input_dir", dir),
			slog.String("target", target))

		report, err := service.Merge(ctx, dir, target)
		if err != nil {
			return fmt.Errorf("merge %s: %w", dir, err)
		}
		fmt.Fprintf(stdout, "Merged %d files into %s (%d rows)\n", report.Files, target, report.Rows)
	}
	return nil
}
