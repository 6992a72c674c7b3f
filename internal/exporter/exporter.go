package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"fuelpanel/internal/config"
	"fuelpanel/internal/files"
	"fuelpanel/pkg/contracts/domain"
)

// Panel file formats
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Uploader stores an exported panel remotely
type Uploader interface {
	Upload(ctx context.Context, relPath string, data []byte, format string) (string, error)
}

// PanelExport describes a written panel file
type PanelExport struct {
	Path      string
	Format    string
	SizeBytes int64
	S3Key     string
}

// Uploaded reports whether the panel was also stored remotely
func (p PanelExport) Uploaded() bool {
	return p.S3Key != ""
}

// RunOutputs is everything persisted at the end of a run
type RunOutputs struct {
	Metadata []domain.BatchMetadata
	History  []domain.ClosingHistoryEntry
	Failed   []domain.FailedBatch
}

// RunFiles lists the files written for a run. Empty fields were not written.
type RunFiles struct {
	MetadataCSV      string
	ClosingCSV       string
	MetadataWorkbook string
	FailedBatches    string
}

// Exporter writes processed panels and run summaries below the configured
// output and metadata directories.
type Exporter struct {
	manager     *files.Manager
	uploader    Uploader
	format      string
	compression string
	keys        KeyColumns
	quantities  []string
	logger      *slog.Logger
}

// NewExporter creates an exporter. uploader may be nil when S3 is disabled.
func NewExporter(cfg config.ExportConfig, keys KeyColumns, quantities []string, manager *files.Manager, uploader Uploader, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	format := cfg.Format
	if format == "" {
		format = FormatCSV
	}
	return &Exporter{
		manager:     manager,
		uploader:    uploader,
		format:      format,
		compression: cfg.Compression,
		keys:        keys,
		quantities:  append([]string(nil), quantities...),
		logger:      logger.With("component", "exporter"),
	}
}

// Format returns the panel file format
func (e *Exporter) Format() string {
	return e.format
}

// Extension returns the file extension of exported panels
func (e *Exporter) Extension() string {
	return "." + e.format
}

// EncodePanel encodes a panel in the configured format
func (e *Exporter) EncodePanel(panel *domain.Panel) ([]byte, error) {
	switch e.format {
	case FormatParquet:
		return EncodePanelParquet(panel, e.keys, e.compression)
	case FormatCSV:
		var buf bytes.Buffer
		if err := WritePanelCSV(&buf, panel, e.keys); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", e.format)
	}
}

// ExportPanel writes the panel of the batch stored at relPath to the output
// directory, mirroring the input layout, and uploads it when an uploader is
// configured. Reprocessing a batch replaces its panel file.
func (e *Exporter) ExportPanel(ctx context.Context, relPath string, panel *domain.Panel) (PanelExport, error) {
	data, err := e.EncodePanel(panel)
	if err != nil {
		return PanelExport{}, fmt.Errorf("encode panel %s: %w", relPath, err)
	}

	target := e.manager.Paths().OutputPath(relPath, e.Extension())
	n, err := e.manager.WriteFileAtomic(target, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return PanelExport{}, err
	}

	result := PanelExport{Path: target, Format: e.format, SizeBytes: n}
	if e.uploader != nil {
		rel, err := filepath.Rel(e.manager.Paths().OutputDir, target)
		if err != nil {
			return result, err
		}
		key, err := e.uploader.Upload(ctx, filepath.ToSlash(rel), data, e.format)
		if err != nil {
			return result, err
		}
		result.S3Key = key
	}

	e.logger.DebugContext(ctx, "Panel exported",
		slog.String("path", target),
		slog.String("format", e.format),
		slog.Int("rows", panel.Len()),
		slog.Int64("size_bytes", n))
	return result, nil
}

// ExportRun writes the run summary files to the metadata directory. None of
// them overwrites an existing file. The failed batch list and the workbook
// are written only when there is something to report.
func (e *Exporter) ExportRun(ctx context.Context, out RunOutputs) (RunFiles, error) {
	paths := e.manager.Paths()
	var written RunFiles
	var err error

	written.MetadataCSV, err = e.manager.CreateWithoutOverwrite(paths.MetadataCSV, func(w io.Writer) error {
		return WriteMetadataCSV(w, out.Metadata, e.quantities)
	})
	if err != nil {
		return written, err
	}

	written.ClosingCSV, err = e.manager.CreateWithoutOverwrite(paths.ClosingHistory, func(w io.Writer) error {
		return WriteClosingHistoryCSV(w, out.History, e.quantities, e.keys)
	})
	if err != nil {
		return written, err
	}

	if len(out.Metadata) > 0 || len(out.Failed) > 0 {
		written.MetadataWorkbook, err = e.manager.CreateWithoutOverwrite(paths.MetadataWorkbook, func(w io.Writer) error {
			return WriteMetadataWorkbook(w, out.Metadata, out.History, out.Failed, e.quantities, e.keys)
		})
		if err != nil {
			return written, err
		}
	}

	if len(out.Failed) > 0 {
		written.FailedBatches, err = e.manager.CreateWithoutOverwrite(paths.FailedBatches, func(w io.Writer) error {
			return WriteFailedBatches(w, out.Failed)
		})
		if err != nil {
			return written, err
		}
	}

	e.logger.InfoContext(ctx, "Run summary written",
		slog.String("metadata_csv", written.MetadataCSV),
		slog.String("closing_csv", written.ClosingCSV),
		slog.String("workbook", written.MetadataWorkbook),
		slog.String("failed_batches", written.FailedBatches),
		slog.Int("batches", len(out.Metadata)),
		slog.Int("failed", len(out.Failed)))
	return written, nil
}

// WritePanelFile writes a panel CSV to an arbitrary path, replacing any
// existing file. Used by the resample, merge and split tools.
func (e *Exporter) WritePanelFile(path string, panel *domain.Panel) (int64, error) {
	return e.manager.WriteFileAtomic(path, func(w io.Writer) error {
		return WritePanelCSV(w, panel, e.keys)
	})
}
