package files

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fuelpanel/internal/config"
	apperrors "fuelpanel/internal/errors"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	RelPath string // slash separated, relative to the discovery root
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// BasePath returns the discovery root
func (d *Discovery) BasePath() string {
	return d.basePath
}

// FindBatchFiles finds every raw batch file (.csv or .xlsx) below the base
// path. Files are ordered by relative path, which for the dated layout
// YYYY/MM/YYYY-MM-DD-prices.csv is chronological order.
func (d *Discovery) FindBatchFiles() ([]FileInfo, error) {
	return d.FindFiles("", config.BatchExtCSV, config.BatchExtXLSX)
}

// FindFiles walks dir recursively and returns files whose extension matches
// one of exts, ignoring case. Hidden files and office lock files are
// skipped. A relative dir is taken relative to the base path.
func (d *Discovery) FindFiles(dir string, exts ...string) ([]FileInfo, error) {
	root := d.resolve(dir)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			return nil
		}
		if !hasExtension(name, exts) {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Name:    name,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	SortByPath(files)
	return files, nil
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// SortByPath orders files by relative path
func SortByPath(files []FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
}

// FilterUnseen returns the files whose relative path is not in seen,
// keeping their order.
func FilterUnseen(files []FileInfo, seen map[string]bool) []FileInfo {
	var out []FileInfo
	for _, f := range files {
		if !seen[f.RelPath] {
			out = append(out, f)
		}
	}
	return out
}

// ReadStationSubset reads station ids from a CSV file. The ids are taken
// from the column named column when the header has one, otherwise from the
// first column. Blank cells are skipped and duplicates removed.
func ReadStationSubset(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open station subset", err).WithContext("path", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, apperrors.NewParsingError("failed to read station subset header", err).WithContext("path", path)
	}

	idx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == column {
			idx = i
			break
		}
	}

	seen := make(map[string]bool)
	var stations []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			stations = append(stations, id)
		}
	}

	// Without a matching header the first line is already data
	if idx < 0 {
		idx = 0
		if len(header) > 0 {
			add(header[0])
		}
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read station subset", err).WithContext("path", path)
		}
		if idx < len(rec) {
			add(rec[idx])
		}
	}
	return stations, nil
}
