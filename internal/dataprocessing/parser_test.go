package dataprocessing

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/internal/shared/testutil"
	"fuelpanel/pkg/contracts/domain"
)

const rawBatch = `date,station_uuid,diesel,e5,e10,dieselchange,e5change,e10change,brand
2014-06-08 09:06:01+02,A,1.459,1.599,,1,1,0,Aral
2014-06-08 09:10:00+02,B,0,1.549,1.529,1,1,1,Shell

2014-06-08 10:00:00+02,A,1.449,NaN,1.569,1,0,1,Aral
`

func TestParseCSV(t *testing.T) {
	batch, err := ParseCSV(strings.NewReader(rawBatch), "2014-06-08", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "2014-06-08", batch.ID)
	assert.Equal(t, []string{"date", "station_uuid", "diesel", "e5", "e10", "brand"}, batch.Columns,
		"change columns are dropped")
	require.Len(t, batch.Observations, 3, "blank lines are skipped")

	first := batch.Observations[0]
	assert.Equal(t, "A", first.StationID)
	assert.Equal(t, "2014-06-08 09:06:01+02", first.RawTime)
	assert.Equal(t, map[string]float64{"diesel": 1.459, "e5": 1.599}, first.Values, "empty cells are absent")
	assert.Equal(t, map[string]string{"brand": "Aral"}, first.Attributes)

	assert.Equal(t, 0.0, batch.Observations[1].Values["diesel"], "zero is kept for the gap filler")
	_, hasE5 := batch.Observations[2].Values["e5"]
	assert.False(t, hasE5, "NaN cells are absent")
}

func TestParseCSV_InvalidValue(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,station_uuid,diesel,e5,e10\n2014-06-08 09:00:00+02,A,abc,1,1\n"),
		"bad", DefaultOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseCSV_MissingKeyColumnsFailStratification(t *testing.T) {
	opts := DefaultOptions()
	batch, err := ParseCSV(strings.NewReader("date,diesel,e5,e10\n2014-06-08 09:00:00+02,1,1,1\n"), "no-station", opts)
	require.NoError(t, err)

	_, err = Stratify(batch, opts)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
	assert.Contains(t, err.Error(), "station_uuid")
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	fixtures := testutil.NewBatchFixtures(dir)
	path, err := fixtures.WriteBatch("2014/06/2014-06-08-prices.csv",
		testutil.PriceRow{Date: "2014-06-08 09:00:00+02", Station: "A", Diesel: "1.459", E5: "1.599", E10: "1.579"})
	require.NoError(t, err)

	batch, err := ParseFile(path, "2014-06-08", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, batch.Observations, 1)
	assert.Equal(t, 1.579, batch.Observations[0].Values["e10"])

	_, err = ParseFile(filepath.Join(dir, "prices.json"), "x", DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2014-06-08-prices.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	// A title row above the header must be skipped.
	require.NoError(t, f.SetCellValue(sheet, "A1", "Tankstellen Preise"))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"date", "station_uuid", "diesel", "e5", "e10", "e5change"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2014-06-08 09:00:00+02", "A", 1.459, 1.599, 1.579, 1}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"2014-06-08 11:00:00+02", "B", 1.409, "", 1.529, 0}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	batch, err := ParseFile(path, "2014-06-08", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "station_uuid", "diesel", "e5", "e10"}, batch.Columns)
	require.Len(t, batch.Observations, 2)
	assert.Equal(t, 1.459, batch.Observations[0].Values["diesel"])
	_, hasE5 := batch.Observations[1].Values["e5"]
	assert.False(t, hasE5)

	panel, err := Stratify(batch, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, panel.Len())
}

func TestParseWorkbook_NoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue(f.GetSheetName(0), "A1", "nothing here"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := ParseWorkbook(path, "empty", DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}

func TestParsePanelCSV(t *testing.T) {
	opts := DefaultOptions()
	input := `station_uuid,date,diesel,diesel_is_selling
B,2014-06-08 09:00:00+02:00,1.409,1
A,2014-06-08 10:00:00+02:00,,0
A,2014-06-08 09:00:00,1.459,1
`
	panel, err := ParsePanelCSV(strings.NewReader(input), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"diesel", "diesel_is_selling"}, panel.Columns)
	require.Equal(t, 3, panel.Len())
	assert.Equal(t, []string{"A", "B"}, panel.Stations())

	first := panel.Rows[0]
	assert.True(t, first.Time.Equal(time.Date(2014, 6, 8, 7, 0, 0, 0, time.UTC)), "civil times are read in the batch zone")
	assert.Equal(t, opts.Location, first.Time.Location())
	assert.True(t, math.IsNaN(panel.Rows[1].Values[0]))
}

func TestParsePanelCSV_RoundTripsPanelTimes(t *testing.T) {
	opts := DefaultOptions()
	ts := time.Date(2014, 10, 26, 2, 30, 0, 0, time.UTC).In(opts.Location)
	input := "station_uuid,date,price\nA," + ts.Format(domain.TimeLayout) + ",1.5\n"

	panel, err := ParsePanelCSV(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.True(t, panel.Rows[0].Time.Equal(ts))
}

func TestParsePanelCSV_MissingKey(t *testing.T) {
	_, err := ParsePanelCSV(strings.NewReader("station_uuid,price\nA,1\n"), DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))

	_, err = ParsePanelCSV(strings.NewReader(""), DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}
