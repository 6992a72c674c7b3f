package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fuelpanel/internal/config"
	apperrors "fuelpanel/internal/errors"
)

// maxSuffix bounds the numbered names tried by CreateWithoutOverwrite.
const maxSuffix = 10000

// Manager provides file management operations
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger.With("component", "file_manager")}
}

// Paths returns the resolved application paths
func (m *Manager) Paths() *config.Paths {
	return m.paths
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDirectory creates a directory with all parent directories
func (m *Manager) EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", path)
	}
	return nil
}

// WriteFileAtomic writes a file through a temporary sibling and a rename,
// so readers never observe a partially written file. An existing file is
// replaced. It returns the number of bytes written.
func (m *Manager) WriteFileAtomic(path string, write func(w io.Writer) error) (int64, error) {
	if err := m.EnsureDirectory(filepath.Dir(path)); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, apperrors.NewStorageError("failed to create temporary file", err).WithContext("path", path)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	counter := &countingWriter{w: tmp}
	if err := write(counter); err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, apperrors.NewStorageError("failed to sync file", err).WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, apperrors.NewStorageError("failed to close file", err).WithContext("path", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, apperrors.NewStorageError("failed to move file into place", err).WithContext("path", path)
	}

	m.logger.Debug("Wrote file",
		slog.String("path", path),
		slog.Int64("size_bytes", counter.n))
	return counter.n, nil
}

// CreateWithoutOverwrite writes a new file at path, or at the first free
// numbered variant (name_1.ext, name_2.ext, ...) when path already exists.
// It returns the path actually written.
func (m *Manager) CreateWithoutOverwrite(path string, write func(w io.Writer) error) (string, error) {
	if err := m.EnsureDirectory(filepath.Dir(path)); err != nil {
		return "", err
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 0; i < maxSuffix; i++ {
		candidate := path
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}

		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", apperrors.NewStorageError("failed to create file", err).WithContext("path", candidate)
		}

		if err := write(f); err != nil {
			f.Close()
			os.Remove(candidate)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", apperrors.NewStorageError("failed to close file", err).WithContext("path", candidate)
		}

		if candidate != path {
			m.logger.Info("Target exists, wrote numbered file instead",
				slog.String("requested", path),
				slog.String("written", candidate))
		}
		return candidate, nil
	}
	return "", apperrors.NewStorageError("no free file name", nil).WithContext("path", path)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
