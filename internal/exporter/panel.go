package exporter

import (
	"io"

	"fuelpanel/pkg/contracts/domain"
)

// KeyColumns names the station and time columns written in front of the
// panel's value columns.
type KeyColumns struct {
	Station string
	Time    string
}

// DefaultKeyColumns returns the column names of the raw price files
func DefaultKeyColumns() KeyColumns {
	return KeyColumns{Station: domain.DefaultStationColumn, Time: domain.DefaultTimeColumn}
}

func (k KeyColumns) header(panel *domain.Panel) []string {
	header := make([]string, 0, len(panel.Columns)+2)
	header = append(header, k.Station, k.Time)
	return append(header, panel.Columns...)
}

// WritePanelCSV writes a panel as CSV: the key columns followed by every
// value column, one line per row in panel order. Timestamps carry their
// UTC offset and missing values are empty, so the output reads back with
// dataprocessing.ParsePanelCSV.
func WritePanelCSV(w io.Writer, panel *domain.Panel, keys KeyColumns) error {
	stream, err := NewStreamWriter(w, keys.header(panel), false)
	if err != nil {
		return err
	}

	record := make([]string, len(panel.Columns)+2)
	for _, row := range panel.Rows {
		record[0] = row.Station
		record[1] = formatTime(row.Time)
		for j, v := range row.Values {
			record[j+2] = formatFloat(v)
		}
		if err := stream.WriteRecord(record); err != nil {
			return err
		}
	}
	return stream.Flush()
}
