package exporter

import (
	"fmt"
	"io"

	"fuelpanel/pkg/contracts/domain"
)

// MeanColumn names the metadata column holding the mean of a quantity
func MeanColumn(quantity string) string {
	return quantity + "_mean"
}

// metadataTable renders one row per batch: date, batch id, one mean per
// quantity, then the row and station counts.
func metadataTable(records []domain.BatchMetadata, quantities []string) ([]string, [][]string) {
	header := []string{"date", "batch_id"}
	for _, q := range quantities {
		header = append(header, MeanColumn(q))
	}
	header = append(header, "rows", "stations")

	rows := make([][]string, 0, len(records))
	for _, m := range records {
		row := []string{formatDate(m.Date), m.BatchID}
		for _, q := range quantities {
			v, ok := m.Means[q]
			if !ok {
				v = domain.Missing()
			}
			row = append(row, formatFloat(v))
		}
		row = append(row, formatInt(m.Rows), formatInt(m.Stations))
		rows = append(rows, row)
	}
	return header, rows
}

// closingTable renders every snapshot of the history, one row per station
// and batch, in batch order and station order within a batch.
func closingTable(entries []domain.ClosingHistoryEntry, quantities []string, keys KeyColumns) ([]string, [][]string) {
	header := []string{"batch_id", keys.Station, keys.Time}
	header = append(header, quantities...)

	var rows [][]string
	for _, entry := range entries {
		for _, rec := range entry.State.Records() {
			row := []string{entry.BatchID, rec.Station, formatTime(rec.Time)}
			for _, q := range quantities {
				v, ok := rec.Values[q]
				if !ok {
					v = domain.Missing()
				}
				row = append(row, formatFloat(v))
			}
			rows = append(rows, row)
		}
	}
	return header, rows
}

// WriteMetadataCSV writes the per-batch metadata table
func WriteMetadataCSV(w io.Writer, records []domain.BatchMetadata, quantities []string) error {
	header, rows := metadataTable(records, quantities)
	return WriteCSV(w, WriteOptions{Headers: header, Records: rows})
}

// WriteClosingHistoryCSV writes the closing snapshot after every batch
func WriteClosingHistoryCSV(w io.Writer, entries []domain.ClosingHistoryEntry, quantities []string, keys KeyColumns) error {
	header, rows := closingTable(entries, quantities, keys)
	return WriteCSV(w, WriteOptions{Headers: header, Records: rows})
}

// WriteFailedBatches writes one line per rejected batch: the batch id, the
// error kind and the reason, separated by tabs.
func WriteFailedBatches(w io.Writer, failed []domain.FailedBatch) error {
	for _, f := range failed {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", f.BatchID, f.Kind, f.Reason); err != nil {
			return err
		}
	}
	return nil
}
