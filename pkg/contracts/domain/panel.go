package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// TimeLayout is the textual form of panel timestamps in exported tables.
const TimeLayout = "2006-01-02 15:04:05-07:00"

// ActiveSuffix is appended to a quantity name to form its active-indicator column.
const ActiveSuffix = "_is_selling"

// ActiveColumn returns the indicator column name for a quantity.
func ActiveColumn(quantity string) string {
	return quantity + ActiveSuffix
}

// IsActiveColumn reports whether name is an indicator column.
func IsActiveColumn(name string) bool {
	return strings.HasSuffix(name, ActiveSuffix)
}

// Missing returns the marker stored in undefined panel cells.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a cell value is undefined.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// PanelKey identifies a panel row.
type PanelKey struct {
	Station string
	Time    time.Time
}

// PanelRow is one (station, timestamp) row of a panel.
type PanelRow struct {
	Station string
	Time    time.Time
	Values  []float64
}

// Panel is a table indexed by (station, timestamp) with one row per
// combination. Rows are kept sorted by station, then time.
type Panel struct {
	Columns []string
	Rows    []PanelRow
}

// StationRange is the half-open row range [Start, End) of one station.
type StationRange struct {
	Station string
	Start   int
	End     int
}

// NewPanel creates an empty panel with the given value columns.
func NewPanel(columns []string) *Panel {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Panel{Columns: cols}
}

// Len returns the number of rows.
func (p *Panel) Len() int {
	return len(p.Rows)
}

// ColumnIndex returns the position of a column or -1.
func (p *Panel) ColumnIndex(name string) int {
	for i, c := range p.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the panel has the column.
func (p *Panel) HasColumn(name string) bool {
	return p.ColumnIndex(name) >= 0
}

// AppendRow adds a row; values are copied.
func (p *Panel) AppendRow(station string, ts time.Time, values []float64) {
	vals := make([]float64, len(p.Columns))
	copy(vals, values)
	for i := len(values); i < len(vals); i++ {
		vals[i] = Missing()
	}
	p.Rows = append(p.Rows, PanelRow{Station: station, Time: ts, Values: vals})
}

// AddColumn appends a column initialized to fill and returns its index.
// An existing column is left untouched.
func (p *Panel) AddColumn(name string, fill float64) int {
	if idx := p.ColumnIndex(name); idx >= 0 {
		return idx
	}
	p.Columns = append(p.Columns, name)
	for i := range p.Rows {
		p.Rows[i].Values = append(p.Rows[i].Values, fill)
	}
	return len(p.Columns) - 1
}

// Column returns a copy of the values of one column, or nil when absent.
func (p *Panel) Column(name string) []float64 {
	idx := p.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(p.Rows))
	for i, row := range p.Rows {
		out[i] = row.Values[idx]
	}
	return out
}

// Value returns the cell at (row, column) or the missing marker.
func (p *Panel) Value(row int, column string) float64 {
	idx := p.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(p.Rows) {
		return Missing()
	}
	return p.Rows[row].Values[idx]
}

// Lookup returns the row index of a key, or -1.
func (p *Panel) Lookup(station string, ts time.Time) int {
	i := sort.Search(len(p.Rows), func(i int) bool {
		r := p.Rows[i]
		if r.Station != station {
			return r.Station > station
		}
		return !r.Time.Before(ts)
	})
	if i < len(p.Rows) && p.Rows[i].Station == station && p.Rows[i].Time.Equal(ts) {
		return i
	}
	return -1
}

// Clone returns a deep copy of the panel.
func (p *Panel) Clone() *Panel {
	out := NewPanel(p.Columns)
	out.Rows = make([]PanelRow, len(p.Rows))
	for i, row := range p.Rows {
		vals := make([]float64, len(row.Values))
		copy(vals, row.Values)
		out.Rows[i] = PanelRow{Station: row.Station, Time: row.Time, Values: vals}
	}
	return out
}

// SelectColumns returns a deep copy restricted to the named columns, in the
// given order. Unknown names are skipped.
func (p *Panel) SelectColumns(names []string) *Panel {
	var idx []int
	var cols []string
	for _, name := range names {
		if i := p.ColumnIndex(name); i >= 0 {
			idx = append(idx, i)
			cols = append(cols, name)
		}
	}
	out := NewPanel(cols)
	out.Rows = make([]PanelRow, len(p.Rows))
	for r, row := range p.Rows {
		vals := make([]float64, len(idx))
		for j, i := range idx {
			vals[j] = row.Values[i]
		}
		out.Rows[r] = PanelRow{Station: row.Station, Time: row.Time, Values: vals}
	}
	return out
}

// Sort orders rows by station, then time. The sort is stable.
func (p *Panel) Sort() {
	sort.SliceStable(p.Rows, func(i, j int) bool {
		a, b := p.Rows[i], p.Rows[j]
		if a.Station != b.Station {
			return a.Station < b.Station
		}
		return a.Time.Before(b.Time)
	})
}

// Stations returns the distinct stations in row order.
func (p *Panel) Stations() []string {
	var out []string
	for i, row := range p.Rows {
		if i == 0 || p.Rows[i-1].Station != row.Station {
			out = append(out, row.Station)
		}
	}
	return out
}

// Times returns the distinct timestamps in chronological order.
func (p *Panel) Times() []time.Time {
	seen := make(map[int64]time.Time)
	for _, row := range p.Rows {
		seen[row.Time.UnixNano()] = row.Time
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// StationRanges splits the rows into contiguous per-station ranges.
// The panel must be sorted.
func (p *Panel) StationRanges() []StationRange {
	var ranges []StationRange
	start := 0
	for i := 1; i <= len(p.Rows); i++ {
		if i == len(p.Rows) || p.Rows[i].Station != p.Rows[start].Station {
			ranges = append(ranges, StationRange{
				Station: p.Rows[start].Station,
				Start:   start,
				End:     i,
			})
			start = i
		}
	}
	return ranges
}

// TimeSpan returns the earliest and latest timestamps of the panel.
func (p *Panel) TimeSpan() (time.Time, time.Time, bool) {
	if len(p.Rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	lo, hi := p.Rows[0].Time, p.Rows[0].Time
	for _, row := range p.Rows[1:] {
		if row.Time.Before(lo) {
			lo = row.Time
		}
		if row.Time.After(hi) {
			hi = row.Time
		}
	}
	return lo, hi, true
}
