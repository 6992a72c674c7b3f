package dataprocessing

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// ChangesColumn counts the source rows falling into a bin. It does not have
// to exist in the panel: mapping it synthesizes one change per source row.
const ChangesColumn = "total_changes"

const day = 24 * time.Hour

// Aggregation is the function reducing the values of one column in a bin.
type Aggregation string

const (
	AggMean  Aggregation = "mean"
	AggMax   Aggregation = "max"
	AggMin   Aggregation = "min"
	AggCount Aggregation = "count"
	AggSum   Aggregation = "sum"
	AggFirst Aggregation = "first"
	AggLast  Aggregation = "last"
)

var aggregations = map[Aggregation]bool{
	AggMean: true, AggMax: true, AggMin: true, AggCount: true,
	AggSum: true, AggFirst: true, AggLast: true,
}

// counting aggregations are zero in an empty bin and never filled.
func (a Aggregation) counting() bool {
	return a == AggCount || a == AggSum
}

// ParseAggregation validates an aggregation name.
func ParseAggregation(s string) (Aggregation, error) {
	a := Aggregation(strings.ToLower(strings.TrimSpace(s)))
	if !aggregations[a] {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("unknown aggregation %q", s))
	}
	return a, nil
}

// AggregationMap assigns one aggregation to every column kept by Resample.
type AggregationMap map[string]Aggregation

// ParseAggregationMap parses "col=agg,col=agg" pairs.
func ParseAggregationMap(s string) (AggregationMap, error) {
	out := make(AggregationMap)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		col, agg, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(col) == "" {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("malformed aggregation %q, want column=function", pair))
		}
		a, err := ParseAggregation(agg)
		if err != nil {
			return nil, err
		}
		out[strings.TrimSpace(col)] = a
	}
	if len(out) == 0 {
		return nil, apperrors.NewAppValidationError("empty aggregation map")
	}
	return out, nil
}

// DefaultAggregations maps every quantity to its mean, every indicator to
// its max and counts the price changes per bin.
func DefaultAggregations(quantities []string) AggregationMap {
	m := AggregationMap{ChangesColumn: AggCount}
	for _, q := range quantities {
		m[q] = AggMean
		m[domain.ActiveColumn(q)] = AggMax
	}
	return m
}

// CheckColumns reports mapped columns that a processed panel of the given
// quantities never carries. A processed panel holds the quantities, their
// indicators and nothing else; ChangesColumn is synthesized.
func (m AggregationMap) CheckColumns(quantities []string) error {
	known := map[string]bool{ChangesColumn: true}
	for _, q := range quantities {
		known[q] = true
		known[domain.ActiveColumn(q)] = true
	}
	var unknown []string
	for col := range m {
		if !known[col] {
			unknown = append(unknown, col)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return apperrors.NewAppValidationError(
		fmt.Sprintf("aggregation for unknown columns: %s", strings.Join(unknown, ", ")))
}

var aliasPattern = regexp.MustCompile(`^(\d*)\s*([A-Za-z]+)$`)

var aliasUnits = map[string]time.Duration{
	"s": time.Second, "S": time.Second,
	"t": time.Minute, "T": time.Minute, "min": time.Minute,
	"h": time.Hour, "H": time.Hour,
	"d": day, "D": day,
}

// ParseBinWidth parses a bin width. Accepted forms are Go durations ("1h",
// "15m"), frequency aliases ("H", "D", "5T", "15min") and the words
// "hourly" and "daily". The width must divide a day or be a whole number
// of days.
func ParseBinWidth(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var width time.Duration

	switch strings.ToLower(s) {
	case "hourly":
		width = time.Hour
	case "daily":
		width = day
	default:
		if d, err := time.ParseDuration(s); err == nil {
			width = d
			break
		}
		m := aliasPattern.FindStringSubmatch(s)
		if m == nil {
			return 0, apperrors.NewAppValidationError(fmt.Sprintf("invalid bin width %q", s))
		}
		unit, ok := aliasUnits[m[2]]
		if !ok {
			return 0, apperrors.NewAppValidationError(fmt.Sprintf("invalid bin width unit %q", m[2]))
		}
		n := 1
		if m[1] != "" {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, apperrors.NewAppValidationError(fmt.Sprintf("invalid bin width %q", s))
			}
			n = v
		}
		width = time.Duration(n) * unit
	}

	if err := checkBinWidth(width); err != nil {
		return 0, err
	}
	return width, nil
}

func checkBinWidth(width time.Duration) error {
	if width <= 0 {
		return apperrors.NewAppValidationError(fmt.Sprintf("bin width must be positive, got %s", width))
	}
	if day%width != 0 && width%day != 0 {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("bin width %s neither divides a day nor is a multiple of one", width))
	}
	return nil
}

type binAccumulator struct {
	n     int
	sum   float64
	min   float64
	max   float64
	first float64
	last  float64
}

func (a *binAccumulator) add(v float64) {
	if a.n == 0 {
		a.min, a.max, a.first = v, v, v
	}
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	a.sum += v
	a.last = v
	a.n++
}

func (a *binAccumulator) result(agg Aggregation) float64 {
	switch agg {
	case AggCount:
		return float64(a.n)
	case AggSum:
		return a.sum
	}
	if a.n == 0 {
		return domain.Missing()
	}
	switch agg {
	case AggMean:
		return a.sum / float64(a.n)
	case AggMax:
		return a.max
	case AggMin:
		return a.min
	case AggFirst:
		return a.first
	default:
		return a.last
	}
}

// Resample aggregates a filled panel into bins of the given width.
//
// Each timestamp is floored to the start of its bin on the local clock of
// the panel. The result holds one row per station and per bin from the
// local midnight of the earliest day up to the end of the latest day,
// including bins without source rows. A latest timestamp falling exactly
// on a local midnight closes the range and gets no bin of its own; its
// values still fill the bins before it. Empty bins of counting
// aggregations are zero; all other columns are filled forward, then
// backward, inside each station.
//
// Only mapped columns are kept, in panel order, followed by ChangesColumn
// when it is mapped but absent from the panel.
func Resample(panel *domain.Panel, aggs AggregationMap, width time.Duration) (*domain.Panel, error) {
	if err := checkBinWidth(width); err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, apperrors.NewAppValidationError("empty aggregation map")
	}

	var (
		columns []string
		sources []int
		funcs   []Aggregation
		absent  []string
	)
	for _, col := range panel.Columns {
		if agg, ok := aggs[col]; ok {
			columns = append(columns, col)
			sources = append(sources, panel.ColumnIndex(col))
			funcs = append(funcs, agg)
		}
	}
	for col, agg := range aggs {
		if !aggregations[agg] {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown aggregation %q for %s", agg, col))
		}
		if panel.HasColumn(col) {
			continue
		}
		if col == ChangesColumn {
			continue
		}
		absent = append(absent, col)
	}
	if len(absent) > 0 {
		sort.Strings(absent)
		return nil, apperrors.NewSchemaError("", absent)
	}
	if agg, ok := aggs[ChangesColumn]; ok && !panel.HasColumn(ChangesColumn) {
		columns = append(columns, ChangesColumn)
		sources = append(sources, -1)
		funcs = append(funcs, agg)
	}

	out := domain.NewPanel(columns)
	lo, hi, ok := panel.TimeSpan()
	if !ok {
		return out, nil
	}

	_, end := gridBounds(lo, hi)
	grid := binGrid(lo, hi, width)
	ranges := panel.StationRanges()
	out.Rows = make([]domain.PanelRow, 0, len(ranges)*len(grid))

	for _, r := range ranges {
		acc := make([][]binAccumulator, len(grid))
		for i := r.Start; i < r.End; i++ {
			row := panel.Rows[i]
			if !row.Time.Before(end) {
				continue
			}
			b := floorBin(grid, row.Time)
			if b < 0 {
				continue
			}
			if acc[b] == nil {
				acc[b] = make([]binAccumulator, len(columns))
			}
			for c, src := range sources {
				v := 1.0
				if src >= 0 {
					v = row.Values[src]
				}
				if domain.IsMissing(v) {
					continue
				}
				acc[b][c].add(v)
			}
		}

		start := len(out.Rows)
		for b, binStart := range grid {
			vals := make([]float64, len(columns))
			for c, agg := range funcs {
				if acc[b] == nil {
					var empty binAccumulator
					vals[c] = empty.result(agg)
					continue
				}
				vals[c] = acc[b][c].result(agg)
			}
			out.Rows = append(out.Rows, domain.PanelRow{Station: r.Station, Time: binStart, Values: vals})
		}

		stationRange := domain.StationRange{Station: r.Station, Start: start, End: len(out.Rows)}
		for c, agg := range funcs {
			if !agg.counting() {
				directionalFill(out, c, stationRange)
			}
		}
	}
	return out, nil
}

// gridBounds returns the local midnight at or before lo and the first local
// midnight at or after hi. A span that is a single midnight still covers
// its day.
func gridBounds(lo, hi time.Time) (start, end time.Time) {
	loc := lo.Location()
	hi = hi.In(loc)
	start = time.Date(lo.Year(), lo.Month(), lo.Day(), 0, 0, 0, 0, loc)
	end = time.Date(hi.Year(), hi.Month(), hi.Day(), 0, 0, 0, 0, loc)
	if !end.Equal(hi) || !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// binGrid lists the bin starts covering the local days from lo to hi.
func binGrid(lo, hi time.Time, width time.Duration) []time.Time {
	start, end := gridBounds(lo, hi)

	var grid []time.Time
	if width%day == 0 {
		days := int(width / day)
		for t := start; t.Before(end); t = t.AddDate(0, 0, days) {
			grid = append(grid, t)
		}
		return grid
	}
	// Sub-day bins restart at every local midnight so a day with a
	// clock change still begins on a bin boundary.
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		next := d.AddDate(0, 0, 1)
		for t := d; t.Before(next); t = t.Add(width) {
			grid = append(grid, t)
		}
	}
	return grid
}

// floorBin returns the index of the last bin starting at or before t, or -1.
func floorBin(grid []time.Time, t time.Time) int {
	i := sort.Search(len(grid), func(i int) bool { return grid[i].After(t) })
	return i - 1
}
