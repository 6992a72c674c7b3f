package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	InputDir    string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	MetadataDir string `yaml:"metadata_dir" envconfig:"METADATA_DIR" validate:"required"`
}

// Paths contains the resolved absolute application paths.
// This is the single source of truth for every file path of a run.
type Paths struct {
	BaseDir     string
	InputDir    string
	OutputDir   string
	MetadataDir string

	// Well-known run outputs inside MetadataDir
	MetadataCSV      string
	MetadataWorkbook string
	ClosingHistory   string
	FailedBatches    string
}

// Resolve turns the configured paths into absolute ones. Relative paths are
// taken relative to baseDir; an empty baseDir means the working directory.
func (c PathsConfig) Resolve(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(baseDir, p)
	}

	metadataDir := abs(c.MetadataDir)
	return &Paths{
		BaseDir:          baseDir,
		InputDir:         abs(c.InputDir),
		OutputDir:        abs(c.OutputDir),
		MetadataDir:      metadataDir,
		MetadataCSV:      filepath.Join(metadataDir, MetadataCSVName),
		MetadataWorkbook: filepath.Join(metadataDir, MetadataWorkbookName),
		ClosingHistory:   filepath.Join(metadataDir, ClosingHistoryCSVName),
		FailedBatches:    filepath.Join(metadataDir, FailedBatchesName),
	}, nil
}

// EnsureDirectories creates the output directories if they don't exist.
// The input directory is never created.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.MetadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// ToolDir returns the directory of a panel tool next to OutputDir
func (p *Paths) ToolDir(name string) string {
	return filepath.Join(filepath.Dir(p.OutputDir), name)
}

// OutputPath maps a batch's relative path to its panel file in OutputDir,
// replacing the extension with ext.
func (p *Paths) OutputPath(relPath, ext string) string {
	base := relPath[:len(relPath)-len(filepath.Ext(relPath))]
	return filepath.Join(p.OutputDir, filepath.FromSlash(base)+ext)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("input", p.InputDir),
			slog.String("output", p.OutputDir),
			slog.String("metadata", p.MetadataDir),
		),
		slog.Group("run_files",
			slog.String("metadata_csv", p.MetadataCSV),
			slog.String("metadata_workbook", p.MetadataWorkbook),
			slog.String("closing_history", p.ClosingHistory),
			slog.String("failed_batches", p.FailedBatches),
		))
}
