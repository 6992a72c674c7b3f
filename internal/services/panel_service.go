package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fuelpanel/internal/config"
	"fuelpanel/internal/dataprocessing"
	apperrors "fuelpanel/internal/errors"
	"fuelpanel/internal/exporter"
	"fuelpanel/internal/files"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/pkg/contracts/domain"
)

// PanelWriter persists a panel at a path
type PanelWriter interface {
	WritePanelFile(path string, panel *domain.Panel) (int64, error)
}

// ToolReport summarizes one directory pass of a panel tool
type ToolReport struct {
	Tool     string        `json:"tool"`
	Files    int           `json:"files"`
	Written  []string      `json:"written"`
	Rows     int           `json:"rows"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

func (r *ToolReport) add(path string, rows int, n int64) {
	r.Written = append(r.Written, path)
	r.Rows += rows
	r.Bytes += n
}

// PanelService splits, resamples and merges directories of processed panel
// CSVs. Files are handled concurrently; every output path is derived from
// the relative path of its input.
type PanelService struct {
	opts    dataprocessing.Options
	writer  PanelWriter
	workers int
	logger  *slog.Logger
}

// NewPanelService creates a panel service reading panels with opts
func NewPanelService(opts dataprocessing.Options, writer PanelWriter, logger *slog.Logger) *PanelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelService{
		opts:    opts,
		writer:  writer,
		workers: runtime.GOMAXPROCS(0),
		logger:  infrastructure.WithComponent(logger, "panel_service"),
	}
}

// SetWorkers bounds the number of files processed at once
func (s *PanelService) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// Split writes the columns of every panel below srcDir matching a token to
// dstDir/<token>/<relative path>, keeping the station and time keys.
func (s *PanelService) Split(ctx context.Context, srcDir, dstDir string, tokens []string) (*ToolReport, error) {
	if len(tokens) == 0 {
		return nil, apperrors.NewAppValidationError("at least one split token is required")
	}

	return s.eachPanel(ctx, "split", srcDir, func(file files.FileInfo, panel *domain.Panel, report *ToolReport, mu *sync.Mutex) error {
		for token, part := range dataprocessing.Split(panel, tokens) {
			if len(part.Columns) == 0 {
				s.logger.WarnContext(ctx, "No column matches split token",
					slog.String("file", file.RelPath),
					slog.String("token", token))
			}
			target := filepath.Join(dstDir, token, filepath.FromSlash(file.RelPath))
			n, err := s.writer.WritePanelFile(target, part)
			if err != nil {
				return err
			}
			mu.Lock()
			report.add(target, part.Len(), n)
			mu.Unlock()
		}
		return nil
	})
}

// Resample bins every panel below srcDir. With tokens, each token's
// subdirectory is resampled on its own into dstDir/<token> using the
// aggregations whose column names contain the token. Without tokens srcDir
// is resampled as a whole. A nil aggs uses the default aggregations.
func (s *PanelService) Resample(ctx context.Context, srcDir, dstDir string, tokens []string, width time.Duration, aggs dataprocessing.AggregationMap) (*ToolReport, error) {
	if len(tokens) == 0 {
		if aggs == nil {
			aggs = dataprocessing.DefaultAggregations(s.opts.Quantities)
		}
		return s.resampleDir(ctx, srcDir, dstDir, width, aggs)
	}

	total := &ToolReport{Tool: "resample"}
	start := time.Now()
	for _, token := range tokens {
		report, err := s.resampleDir(ctx, filepath.Join(srcDir, token), filepath.Join(dstDir, token), width, aggregationsFor(token, aggs))
		if err != nil {
			return nil, fmt.Errorf("resample %s: %w", token, err)
		}
		total.Files += report.Files
		total.Written = append(total.Written, report.Written...)
		total.Rows += report.Rows
		total.Bytes += report.Bytes
	}
	total.Duration = time.Since(start)
	return total, nil
}

// aggregationsFor narrows aggs to the columns of one split token
func aggregationsFor(token string, aggs dataprocessing.AggregationMap) dataprocessing.AggregationMap {
	if aggs == nil {
		return dataprocessing.DefaultAggregations([]string{token})
	}
	out := make(dataprocessing.AggregationMap)
	for col, agg := range aggs {
		if col == dataprocessing.ChangesColumn || strings.Contains(col, token) {
			out[col] = agg
		}
	}
	if len(out) == 0 {
		return dataprocessing.DefaultAggregations([]string{token})
	}
	return out
}

func (s *PanelService) resampleDir(ctx context.Context, srcDir, dstDir string, width time.Duration, aggs dataprocessing.AggregationMap) (*ToolReport, error) {
	return s.eachPanel(ctx, "resample", srcDir, func(file files.FileInfo, panel *domain.Panel, report *ToolReport, mu *sync.Mutex) error {
		binned, err := dataprocessing.Resample(panel, aggs, width)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, filepath.FromSlash(file.RelPath))
		n, err := s.writer.WritePanelFile(target, binned)
		if err != nil {
			return err
		}
		mu.Lock()
		report.add(target, binned.Len(), n)
		mu.Unlock()
		return nil
	})
}

// Merge concatenates every panel below srcDir into one file at target,
// sorted by station and time.
func (s *PanelService) Merge(ctx context.Context, srcDir, target string) (*ToolReport, error) {
	start := time.Now()
	found, err := s.find(srcDir)
	if err != nil {
		return nil, err
	}

	panels := make([]*domain.Panel, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range found {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			panel, err := s.readPanel(file)
			if err != nil {
				return err
			}
			panels[i] = panel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := dataprocessing.Merge(panels...)
	if err != nil {
		return nil, err
	}
	n, err := s.writer.WritePanelFile(target, merged)
	if err != nil {
		return nil, err
	}

	report := &ToolReport{Tool: "merge", Files: len(found)}
	report.add(target, merged.Len(), n)
	report.Duration = time.Since(start)
	s.logReport(ctx, srcDir, report)
	return report, nil
}

type panelFunc func(file files.FileInfo, panel *domain.Panel, report *ToolReport, mu *sync.Mutex) error

// eachPanel reads every panel CSV below dir and hands it to fn. The first
// error cancels the remaining files.
func (s *PanelService) eachPanel(ctx context.Context, tool, dir string, fn panelFunc) (*ToolReport, error) {
	start := time.Now()
	found, err := s.find(dir)
	if err != nil {
		return nil, err
	}

	report := &ToolReport{Tool: tool, Files: len(found)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, file := range found {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			panel, err := s.readPanel(file)
			if err != nil {
				return err
			}
			if err := fn(file, panel, report, &mu); err != nil {
				return fmt.Errorf("%s: %w", file.RelPath, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logPanelError(ctx, tool, "Panel tool failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return nil, err
	}

	report.Duration = time.Since(start)
	s.logReport(ctx, dir, report)
	return report, nil
}

func (s *PanelService) find(dir string) ([]files.FileInfo, error) {
	found, err := files.NewDiscovery(dir).FindFiles("", ".csv")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list panel files", err).WithContext("dir", dir)
	}
	if len(found) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("panel files in %s", dir))
	}
	return found, nil
}

func (s *PanelService) readPanel(file files.FileInfo) (*domain.Panel, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open panel", err).WithContext("path", file.Path)
	}
	defer f.Close()

	panel, err := dataprocessing.ParsePanelCSV(f, s.opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.RelPath, err)
	}
	return panel, nil
}

func (s *PanelService) logReport(ctx context.Context, dir string, report *ToolReport) {
	s.logger.InfoContext(ctx, "Panel tool complete",
		slog.String("tool", report.Tool),
		slog.String("dir", dir),
		slog.Int("files", report.Files),
		slog.Int("written", len(report.Written)),
		slog.Int("rows", report.Rows),
		slog.Int64("bytes", report.Bytes),
		slog.Duration("duration", report.Duration))
}

// NewPanelServiceFromConfig builds a panel service writing CSV panels
// through the exporter.
func NewPanelServiceFromConfig(cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*PanelService, error) {
	opts, err := cfg.ProcessingOptions()
	if err != nil {
		return nil, err
	}
	exportCfg := cfg.Export
	exportCfg.Format = exporter.FormatCSV
	exportCfg.S3.Enabled = false

	writer := exporter.NewExporter(exportCfg, exporter.DefaultKeyColumns(), opts.Quantities,
		files.NewManager(paths, logger), nil, logger)
	return NewPanelService(opts, writer, logger), nil
}
