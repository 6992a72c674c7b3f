package dataprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

var nan = math.NaN()

// panelOf builds a sorted single-quantity panel from per-station series
// sharing the same hourly time axis.
func panelOf(series map[string][]float64) *domain.Panel {
	p := domain.NewPanel([]string{"price"})
	for station, values := range series {
		for i, v := range values {
			p.AppendRow(station, utc(9+i, 0), []float64{v})
		}
	}
	p.Sort()
	return p
}

func column(p *domain.Panel, station, name string) []float64 {
	var out []float64
	idx := p.ColumnIndex(name)
	for _, row := range p.Rows {
		if row.Station == station {
			out = append(out, row.Values[idx])
		}
	}
	return out
}

func TestFillGaps(t *testing.T) {
	tests := []struct {
		name          string
		series        []float64
		wantPrice     []float64
		wantIndicator []float64
	}{
		{
			name:          "forward fill",
			series:        []float64{1.5, nan, nan},
			wantPrice:     []float64{1.5, 1.5, 1.5},
			wantIndicator: []float64{1, 1, 1},
		},
		{
			name:          "backward fill of a leading gap",
			series:        []float64{nan, nan, 1.4},
			wantPrice:     []float64{1.4, 1.4, 1.4},
			wantIndicator: []float64{1, 1, 1},
		},
		{
			name:          "zero price is not selling",
			series:        []float64{0, 1.2},
			wantPrice:     []float64{1.2, 1.2},
			wantIndicator: []float64{0, 1},
		},
		{
			name:          "zero is carried forward before it is removed",
			series:        []float64{1.5, 0, nan, 1.6},
			wantPrice:     []float64{1.5, 1.5, 1.5, 1.6},
			wantIndicator: []float64{1, 0, 0, 1},
		},
		{
			name:          "observed prices are untouched",
			series:        []float64{1.5, 1.6, 1.7},
			wantPrice:     []float64{1.5, 1.6, 1.7},
			wantIndicator: []float64{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filled, report, err := FillGaps(panelOf(map[string][]float64{"A": tt.series}), []string{"price"})
			require.NoError(t, err)
			assert.Empty(t, report.Missing)
			assert.Equal(t, []string{"price_is_selling"}, report.Indicators)
			assert.Equal(t, tt.wantPrice, column(filled, "A", "price"))
			assert.Equal(t, tt.wantIndicator, column(filled, "A", "price_is_selling"))
		})
	}
}

func TestFillGaps_NeverCrossesStations(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"A": {1.5, nan},
		"B": {nan, 1.4},
		"C": {nan, nan},
	})

	filled, report, err := FillGaps(panel, []string{"price"})
	require.NoError(t, err)

	assert.Equal(t, []float64{1.5, 1.5}, column(filled, "A", "price"))
	assert.Equal(t, []float64{1.4, 1.4}, column(filled, "B", "price"))

	c := column(filled, "C", "price")
	assert.True(t, math.IsNaN(c[0]) && math.IsNaN(c[1]), "a station without observations must stay missing")
	assert.Equal(t, []float64{0, 0}, column(filled, "C", "price_is_selling"))
	assert.Equal(t, []domain.MissingSeries{{Station: "C", Quantity: "price"}}, report.Missing)

	warnings := report.Warnings("day-1")
	require.Len(t, warnings, 1)
	assert.True(t, apperrors.IsType(warnings[0], apperrors.ErrTypeAllMissing))
}

func TestFillGaps_DoesNotModifyInput(t *testing.T) {
	panel := panelOf(map[string][]float64{"A": {1.5, nan}})
	_, _, err := FillGaps(panel, []string{"price"})
	require.NoError(t, err)

	assert.Equal(t, []string{"price"}, panel.Columns)
	assert.True(t, math.IsNaN(panel.Rows[1].Values[0]))
}

func TestFillGaps_Idempotent(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"A": {0, 1.5, nan, 1.6},
		"B": {nan, 1.4, 0, nan},
	})

	once, _, err := FillGaps(panel, []string{"price"})
	require.NoError(t, err)
	twice, _, err := FillGaps(once, []string{"price"})
	require.NoError(t, err)

	assert.Equal(t, once.Columns, twice.Columns)
	assert.Equal(t, once.Rows, twice.Rows)
}

func TestFillGaps_NoZeroWhenObserved(t *testing.T) {
	panel := panelOf(map[string][]float64{
		"A": {0, 0, 1.5, 0, nan},
		"B": {nan, 0, nan, 1.3, 0},
		"C": {1.1, nan, 0, 0, 0},
	})

	filled, _, err := FillGaps(panel, []string{"price"})
	require.NoError(t, err)

	for _, row := range filled.Rows {
		v := row.Values[filled.ColumnIndex("price")]
		assert.False(t, math.IsNaN(v), "station %s at %s", row.Station, row.Time)
		assert.NotZero(t, v, "station %s at %s", row.Station, row.Time)
	}
}

func TestFillGaps_UnknownQuantity(t *testing.T) {
	_, _, err := FillGaps(panelOf(map[string][]float64{"A": {1}}), []string{"diesel"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}

func TestResolveOpening(t *testing.T) {
	t0 := utc(6, 0)
	closing := domain.NewClosingState(
		domain.ClosingRecord{Station: "A", Time: t0, Values: map[string]float64{"price": 1.30}},
		domain.ClosingRecord{Station: "B", Time: t0, Values: map[string]float64{"price": 1.40}},
		domain.ClosingRecord{Station: "Z", Time: t0, Values: map[string]float64{"price": 0}},
	)

	panel := panelOf(map[string][]float64{
		"A": {1.55, nan},
		"B": {nan, nan},
		"C": {nan, 1.2},
		"Z": {nan, 1.1},
	})

	out, filled := resolveOpening(panel, closing, []string{"price"})

	assert.Equal(t, 1, filled)
	assert.Equal(t, 1.55, column(out, "A", "price")[0], "present values are never overwritten")
	assert.True(t, math.IsNaN(column(out, "A", "price")[1]))

	b := column(out, "B", "price")
	assert.Equal(t, 1.40, b[0])
	assert.True(t, math.IsNaN(b[1]), "only the earliest row is seeded")

	assert.True(t, math.IsNaN(column(out, "C", "price")[0]), "stations without closing record are untouched")
	assert.True(t, math.IsNaN(column(out, "Z", "price")[0]), "a zero closing price is not carried over")

	assert.True(t, math.IsNaN(column(panel, "B", "price")[0]), "input panel must not change")
}

func TestResolveOpening_EmptyClosingState(t *testing.T) {
	panel := panelOf(map[string][]float64{"A": {nan, 1.5}})
	out := ResolveOpening(panel, domain.ClosingState{}, []string{"price"})

	require.Equal(t, panel.Len(), out.Len())
	assert.True(t, math.IsNaN(out.Rows[0].Values[0]))
	assert.Equal(t, 1.5, out.Rows[1].Values[0])
}

func TestCarryOverScenario(t *testing.T) {
	t1, t2 := utc(9, 0), utc(10, 0)
	batch := &domain.Batch{ID: "day-2", Observations: []domain.Observation{
		{StationID: "A", Time: t1, Values: price(1.50)},
		{StationID: "B", Time: t2, Values: map[string]float64{}},
	}}
	closing := domain.NewClosingState(domain.ClosingRecord{
		Station: "B",
		Time:    t1.Add(-24 * time.Hour),
		Values:  price(1.40),
	})

	result, err := ProcessBatch(batch, closing, priceOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Panel.Len())
	assert.Equal(t, []float64{1.50, 1.50}, column(result.Panel, "A", "price"))
	assert.Equal(t, []float64{1.40, 1.40}, column(result.Panel, "B", "price"))
	assert.Equal(t, []float64{1, 1}, column(result.Panel, "A", "price_is_selling"))
	assert.Equal(t, []float64{1, 1}, column(result.Panel, "B", "price_is_selling"))
	assert.Empty(t, result.Missing)
	assert.Equal(t, 1, result.Stats.CarriedOver)
}

func TestZeroPriceScenario(t *testing.T) {
	batch := &domain.Batch{ID: "day-1", Observations: []domain.Observation{
		{StationID: "C", Time: utc(9, 0), Values: price(0)},
		{StationID: "C", Time: utc(10, 0), Values: price(1.20)},
	}}

	result, err := ProcessBatch(batch, domain.ClosingState{}, priceOptions())
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1}, column(result.Panel, "C", "price_is_selling"))
	assert.Equal(t, []float64{1.20, 1.20}, column(result.Panel, "C", "price"))
	assert.Equal(t, 1, result.Stats.ZeroPrices)
}
