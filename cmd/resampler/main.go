// Command resampler aggregates split panels into equidistant time bins, one
// token directory at a time.
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
	"time"

	"fuelpanel/internal/config"
	"fuelpanel/internal/dataprocessing"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/services"
	"fuelpanel/internal/validation"
)

type options struct {
	in         string
	out        string
	tokens     string
	width      string
	agg        string
	configPath string
	workers    int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("resampler", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.in, "in", "", "directory of split panels (defaults to split next to the output directory)")
	fs.StringVar(&opts.out, "out", "", "target directory (defaults to resampled next to the output directory)")
	fs.StringVar(&opts.tokens, "tokens", "", "comma separated token subdirectories (defaults to resample.split_tokens, \"-\" resamples -in as a whole)")
	fs.StringVar(&opts.width, "width", "", "bin width such as 1h, H, 15min or daily (defaults to resample.bin_width)")
	fs.StringVar(&opts.agg, "agg", "", "aggregations as column=function pairs, e.g. diesel=mean,total_changes=count")
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

// settings resolves the bin width, the aggregation map and the tokens from
// the flags with the config as fallback. A nil map selects the per-token
// defaults.
func settings(cfg *config.Config, opts *options) (time.Duration, dataprocessing.AggregationMap, []string, error) {
	widthSpec := cfg.Resample.BinWidth
	if opts.width != "" {
		widthSpec = opts.width
	}
	width, err := dataprocessing.ParseBinWidth(widthSpec)
	if err != nil {
		return 0, nil, nil, err
	}

	var aggs dataprocessing.AggregationMap
	if opts.agg != "" {
		if aggs, err = dataprocessing.ParseAggregationMap(opts.agg); err != nil {
			return 0, nil, nil, err
		}
	}

	var tokens []string
	switch opts.tokens {
	case "":
		tokens = cfg.Resample.SplitTokens
	case "-":
	default:
		for _, t := range strings.Split(opts.tokens, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	return width, aggs, tokens, nil
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
		logger.Error("Resampling failed", slog.String("error", err.Error()))
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
	infrastructure.CloseLogFile()
}

func run(ctx context.Context, cfg *config.Config, opts *options, logger *slog.Logger, stdout io.Writer) error {
	width, aggs, tokens, err := settings(cfg, opts)
	if err != nil {
		return err
	}

	paths, err := cfg.Paths.Resolve("")
	if err != nil {
		return err
	}
	in, out := opts.in, opts.out
	if in == "" {
		in = paths.ToolDir(config.SplitDirName)
	}
	if out == "" {
		out = paths.ToolDir(config.ResampledDirName)
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

	logger.Info("Resampling panels",
		slog.String("input_dir", in),
		slog.String("output_dir", out),
		slog.Duration("bin_width", width),
		slog.Any("tokens", tokens))

	report, err := service.Resample(ctx, in, out, tokens, width, aggs)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Resampled %d files into %d rows\n", report.Files, report.Rows)
	return nil
}
