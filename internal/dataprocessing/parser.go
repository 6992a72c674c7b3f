package dataprocessing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// DroppedColumnToken marks raw columns that are discarded on read. The raw
// exports carry per-quantity change flags that the panel does not use.
const DroppedColumnToken = "change"

// ParseFile reads a raw batch file. The format is chosen by extension:
// .csv files are read as comma separated text, .xlsx files as workbooks.
func ParseFile(path, batchID string, opts Options) (*domain.Batch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to open batch file", err).WithContext("path", path)
		}
		defer f.Close()
		return ParseCSV(f, batchID, opts)
	case ".xlsx":
		return ParseWorkbook(path, batchID, opts)
	default:
		return nil, apperrors.NewParsingError(fmt.Sprintf("unsupported batch file %s", filepath.Base(path)), nil).
			WithContext("path", path)
	}
}

// ParseCSV reads a raw batch from comma separated text with a header row.
func ParseCSV(r io.Reader, batchID string, opts Options) (*domain.Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read csv batch", err).WithContext("batch", batchID)
	}
	return parseRows(batchID, rows, opts)
}

// ParseWorkbook reads a raw batch from the first sheet of an xlsx workbook
// that has a header row naming the station and time columns.
func ParseWorkbook(path, batchID string, opts Options) (*domain.Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for i, row := range rows {
			if headerIndex(row, opts.StationColumn) >= 0 && headerIndex(row, opts.TimeColumn) >= 0 {
				slog.Debug("Found batch header",
					slog.String("batch", batchID),
					slog.String("sheet", sheet),
					slog.Int("row", i))
				return parseRows(batchID, rows[i:], opts)
			}
		}
	}
	return nil, apperrors.NewSchemaError(batchID, []string{opts.StationColumn, opts.TimeColumn}).
		WithContext("path", path)
}

func headerIndex(row []string, name string) int {
	for i, h := range row {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// parseRows turns a header row and data rows into a batch. Columns holding
// the dropped token are removed; declared quantities become values and every
// other column becomes a station attribute.
func parseRows(batchID string, rows [][]string, opts Options) (*domain.Batch, error) {
	if len(rows) == 0 {
		return nil, apperrors.NewSchemaError(batchID, append([]string{opts.StationColumn, opts.TimeColumn}, opts.Quantities...))
	}

	quantities := make(map[string]bool, len(opts.Quantities))
	for _, q := range opts.Quantities {
		quantities[q] = true
	}

	batch := &domain.Batch{ID: batchID}
	var kept []int
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" || strings.Contains(strings.ToLower(h), DroppedColumnToken) {
			continue
		}
		kept = append(kept, i)
		batch.Columns = append(batch.Columns, h)
	}

	stationIdx := -1
	timeIdx := -1
	for j, h := range batch.Columns {
		switch h {
		case opts.StationColumn:
			stationIdx = j
		case opts.TimeColumn:
			timeIdx = j
		}
	}
	if stationIdx < 0 || timeIdx < 0 {
		// Let stratification report the complete list of missing columns.
		return batch, nil
	}

	for line, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		obs := domain.Observation{Values: make(map[string]float64)}
		for j, src := range kept {
			cell := ""
			if src < len(row) {
				cell = strings.TrimSpace(row[src])
			}
			name := batch.Columns[j]
			switch {
			case j == stationIdx:
				obs.StationID = cell
			case j == timeIdx:
				obs.RawTime = cell
			case quantities[name]:
				if cell == "" {
					continue
				}
				v, err := parseValue(cell)
				if err != nil {
					return nil, apperrors.NewParsingError(fmt.Sprintf("invalid %s value %q", name, cell), err).
						WithContext("batch", batchID).
						WithContext("line", line+2)
				}
				if !domain.IsMissing(v) {
					obs.Values[name] = v
				}
			default:
				if obs.Attributes == nil {
					obs.Attributes = make(map[string]string)
				}
				obs.Attributes[name] = cell
			}
		}
		batch.Observations = append(batch.Observations, obs)
	}
	return batch, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseValue(cell string) (float64, error) {
	switch strings.ToLower(cell) {
	case "nan", "na", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// ParsePanelCSV reads a panel written by the exporter: the station and time
// key columns followed by value columns. Empty cells are missing. Rows are
// placed in the location of opts and sorted.
func ParsePanelCSV(r io.Reader, opts Options) (*domain.Panel, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewSchemaError("", []string{opts.StationColumn, opts.TimeColumn})
		}
		return nil, apperrors.NewParsingError("failed to read panel header", err)
	}

	stationIdx, timeIdx := -1, -1
	var valueIdx []int
	var columns []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch h {
		case opts.StationColumn:
			stationIdx = i
		case opts.TimeColumn:
			timeIdx = i
		default:
			valueIdx = append(valueIdx, i)
			columns = append(columns, h)
		}
	}
	var missing []string
	if stationIdx < 0 {
		missing = append(missing, opts.StationColumn)
	}
	if timeIdx < 0 {
		missing = append(missing, opts.TimeColumn)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError("", missing)
	}

	loc := opts.location()
	panel := domain.NewPanel(columns)
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read panel row", err).WithContext("line", line)
		}
		ts, hasOffset, err := parseRaw(rec[timeIdx])
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("invalid panel timestamp %q", rec[timeIdx]), err).
				WithContext("line", line)
		}
		if !hasOffset {
			ts = time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), loc)
		}
		vals := make([]float64, len(valueIdx))
		for j, idx := range valueIdx {
			cell := strings.TrimSpace(rec[idx])
			if cell == "" {
				vals[j] = domain.Missing()
				continue
			}
			v, err := parseValue(cell)
			if err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("invalid %s value %q", columns[j], cell), err).
					WithContext("line", line)
			}
			vals[j] = v
		}
		panel.AppendRow(strings.TrimSpace(rec[stationIdx]), ts.In(loc), vals)
	}
	panel.Sort()
	return panel, nil
}
