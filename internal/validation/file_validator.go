// Package validation checks the directories the commands read from and
// write to before any batch is touched.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "fuelpanel/internal/errors"
)

// FileValidator checks input and output locations of the commands
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateInputDirectory checks that dir exists and is a directory. It
// reports how many files carry one of exts; finding none is not an error.
func (v *FileValidator) ValidateInputDirectory(dir string, exts ...string) (int, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist", slog.String("directory", dir))
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("input directory %s", dir))
	}
	if err != nil {
		return 0, apperrors.NewStorageError("failed to stat input directory", err).WithContext("path", dir)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory", slog.String("path", dir))
		return 0, apperrors.NewAppValidationError(fmt.Sprintf("%s is not a directory", dir))
	}

	count, err := v.CountFiles(dir, exts...)
	if err != nil {
		return 0, err
	}
	if count == 0 && len(exts) > 0 {
		v.logger.Warn("No matching files found",
			slog.String("directory", dir),
			slog.Any("extensions", exts))
		return 0, nil
	}
	v.logger.Info("Input directory validated",
		slog.String("directory", dir),
		slog.Int("files_found", count))
	return count, nil
}

// ValidateOutputDirectory creates dir if needed and checks it is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("path", dir)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("output directory is not writable", err).WithContext("path", dir)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// CountFiles counts regular files below dir, recursively, whose extension
// is one of exts. No exts counts every file. Hidden entries are skipped.
func (v *FileValidator) CountFiles(dir string, exts ...string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if len(exts) == 0 || matchesExt(name, exts) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.NewStorageError("failed to count files", err).WithContext("path", dir)
	}
	return count, nil
}

func matchesExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
