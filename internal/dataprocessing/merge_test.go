package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

func TestMerge(t *testing.T) {
	day1 := domain.NewPanel([]string{"price"})
	day1.AppendRow("A", utc(9, 0), []float64{1.5})
	day1.AppendRow("B", utc(9, 0), []float64{1.4})

	day2 := domain.NewPanel([]string{"price"})
	day2.AppendRow("A", utc(20, 0), []float64{1.6})
	day2.AppendRow("C", utc(20, 0), []float64{1.3})
	day2.AppendRow("A", utc(9, 0), []float64{1.55})

	merged, err := Merge(day1, nil, day2)
	require.NoError(t, err)
	require.Equal(t, 5, merged.Len())

	var keys []string
	for _, row := range merged.Rows {
		keys = append(keys, row.Station+"@"+row.Time.Format("15:04"))
	}
	assert.Equal(t, []string{"A@09:00", "A@09:00", "A@20:00", "B@09:00", "C@20:00"}, keys)
	assert.Equal(t, 1.5, merged.Rows[0].Values[0], "equal keys keep input order")
	assert.Equal(t, 1.55, merged.Rows[1].Values[0])

	day1.Rows[0].Values[0] = 9
	assert.Equal(t, 1.5, merged.Rows[0].Values[0], "merged rows are copies")
}

func TestMerge_ColumnMismatch(t *testing.T) {
	a := domain.NewPanel([]string{"diesel", "e5"})
	b := domain.NewPanel([]string{"diesel"})

	_, err := Merge(a, b)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
	assert.Contains(t, err.Error(), "e5")
}

func TestMerge_Empty(t *testing.T) {
	merged, err := Merge()
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Len())
}

func TestSplit(t *testing.T) {
	p := domain.NewPanel([]string{"diesel", "e5", "e10", "diesel_is_selling", "e5_is_selling", "e10_is_selling"})
	p.AppendRow("A", utc(9, 0), []float64{1.4, 1.5, 1.6, 1, 1, 0})

	parts := Split(p, []string{"diesel", "e10", "lpg"})
	require.Len(t, parts, 3)

	assert.Equal(t, []string{"diesel", "diesel_is_selling"}, parts["diesel"].Columns)
	assert.Equal(t, []float64{1.4, 1}, parts["diesel"].Rows[0].Values)
	assert.Equal(t, []string{"e10", "e10_is_selling"}, parts["e10"].Columns)
	assert.Equal(t, []float64{1.6, 0}, parts["e10"].Rows[0].Values)

	assert.Empty(t, parts["lpg"].Columns)
	require.Equal(t, 1, parts["lpg"].Len(), "the key survives without value columns")
	assert.Equal(t, "A", parts["lpg"].Rows[0].Station)
	assert.Equal(t, utc(9, 0), parts["lpg"].Rows[0].Time)
}
