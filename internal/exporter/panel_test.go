package exporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpanel/internal/dataprocessing"
	"fuelpanel/internal/shared/testutil"
	"fuelpanel/pkg/contracts/domain"
)

func samplePanel() *domain.Panel {
	berlin := testutil.Berlin()
	nan := domain.Missing()
	panel := domain.NewPanel([]string{"diesel", "e5", "diesel_is_selling"})
	panel.AppendRow("A", time.Date(2014, 6, 8, 9, 0, 0, 0, berlin), []float64{1.459, 1.559, 1})
	panel.AppendRow("A", time.Date(2014, 6, 8, 12, 0, 0, 0, berlin), []float64{1.459, nan, 1})
	panel.AppendRow("B", time.Date(2014, 6, 8, 9, 0, 0, 0, berlin), []float64{nan, 1.609, 0})
	panel.AppendRow("B", time.Date(2014, 6, 8, 12, 0, 0, 0, berlin), []float64{1.399, 1.609, 1})
	return panel
}

func TestWritePanelCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePanelCSV(&buf, samplePanel(), DefaultKeyColumns()))

	expected := strings.Join([]string{
		"station_uuid,date,diesel,e5,diesel_is_selling",
		"A,2014-06-08 09:00:00+02:00,1.459,1.559,1",
		"A,2014-06-08 12:00:00+02:00,1.459,,1",
		"B,2014-06-08 09:00:00+02:00,,1.609,0",
		"B,2014-06-08 12:00:00+02:00,1.399,1.609,1",
	}, "\n") + "\n"
	assert.Equal(t, expected, buf.String())
}

func TestWritePanelCSVCustomKeys(t *testing.T) {
	var buf bytes.Buffer
	keys := KeyColumns{Station: "station", Time: "time"}
	require.NoError(t, WritePanelCSV(&buf, domain.NewPanel([]string{"diesel"}), keys))
	assert.Equal(t, "station,time,diesel\n", buf.String())
}

func TestWritePanelCSVReadsBack(t *testing.T) {
	original := samplePanel()

	var buf bytes.Buffer
	require.NoError(t, WritePanelCSV(&buf, original, DefaultKeyColumns()))

	parsed, err := dataprocessing.ParsePanelCSV(&buf, dataprocessing.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, original.Columns, parsed.Columns)
	require.Equal(t, original.Len(), parsed.Len())
	for i, row := range original.Rows {
		got := parsed.Rows[i]
		assert.Equal(t, row.Station, got.Station)
		assert.True(t, row.Time.Equal(got.Time), "row %d time", i)
		for j, v := range row.Values {
			if domain.IsMissing(v) {
				assert.True(t, domain.IsMissing(got.Values[j]), "row %d column %d", i, j)
				continue
			}
			assert.Equal(t, v, got.Values[j], "row %d column %d", i, j)
		}
	}
}
