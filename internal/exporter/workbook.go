package exporter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"fuelpanel/pkg/contracts/domain"
)

// Sheet names of the metadata workbook
const (
	MetadataSheet = "metadata"
	ClosingSheet  = "closing_prices"
	FailedSheet   = "failed_batches"
)

// WriteMetadataWorkbook writes the run summary as an xlsx workbook with one
// sheet for the batch metadata, one for the closing history and one for
// rejected batches. Numeric cells are stored as numbers, missing values are
// left blank.
func WriteMetadataWorkbook(w io.Writer, records []domain.BatchMetadata, history []domain.ClosingHistoryEntry, failed []domain.FailedBatch, quantities []string, keys KeyColumns) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MetadataSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header, rows := metadataTable(records, quantities)
	if err := writeSheet(f, MetadataSheet, header, rows, 2); err != nil {
		return err
	}

	header, rows = closingTable(history, quantities, keys)
	if err := writeSheet(f, ClosingSheet, header, rows, 3); err != nil {
		return err
	}

	failedRows := make([][]string, 0, len(failed))
	for _, fb := range failed {
		failedRows = append(failedRows, []string{fb.BatchID, fb.Kind, fb.Reason})
	}
	if err := writeSheet(f, FailedSheet, []string{"batch_id", "kind", "reason"}, failedRows, -1); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writeSheet writes a header and rows. Columns from firstNumeric on hold
// numbers; a negative firstNumeric keeps every cell as text.
func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, firstNumeric int) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	if err := setRow(f, sheet, 1, toCells(header, -1)); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, toCells(row, firstNumeric)); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// toCells converts numeric columns to numbers and leaves blanks empty
func toCells(values []string, firstNumeric int) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		cells[i] = v
		if firstNumeric >= 0 && i >= firstNumeric {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				cells[i] = n
			}
		}
	}
	return cells
}
