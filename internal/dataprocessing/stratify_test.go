package dataprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/internal/shared/testutil"
	"fuelpanel/pkg/contracts/domain"
)

func priceOptions() Options {
	return Options{
		StationColumn: domain.DefaultStationColumn,
		TimeColumn:    domain.DefaultTimeColumn,
		Quantities:    []string{"price"},
		Location:      time.UTC,
	}
}

func utc(hour, minute int) time.Time {
	return time.Date(2014, 6, 8, hour, minute, 0, 0, time.UTC)
}

func price(v float64) map[string]float64 {
	return map[string]float64{"price": v}
}

func TestStratify_CrossProduct(t *testing.T) {
	tests := []struct {
		name         string
		observations []domain.Observation
		wantStations []string
		wantTimes    int
	}{
		{
			name: "single station",
			observations: []domain.Observation{
				testutil.At("A", utc(9, 0), price(1.5)),
				testutil.At("A", utc(10, 0), price(1.6)),
			},
			wantStations: []string{"A"},
			wantTimes:    2,
		},
		{
			name: "disjoint timestamps",
			observations: []domain.Observation{
				testutil.At("B", utc(11, 0), price(1.4)),
				testutil.At("A", utc(9, 0), price(1.5)),
				testutil.At("C", utc(10, 0), price(1.3)),
			},
			wantStations: []string{"A", "B", "C"},
			wantTimes:    3,
		},
		{
			name: "duplicates collapse before the product",
			observations: []domain.Observation{
				testutil.At("A", utc(9, 0), price(1.5)),
				testutil.At("A", utc(9, 0), price(1.6)),
				testutil.At("B", utc(9, 0), price(1.4)),
			},
			wantStations: []string{"A", "B"},
			wantTimes:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := &domain.Batch{ID: "test", Observations: tt.observations}
			panel, err := Stratify(batch, priceOptions())
			require.NoError(t, err)

			assert.Equal(t, len(tt.wantStations)*tt.wantTimes, panel.Len())
			assert.Equal(t, tt.wantStations, panel.Stations())
			assert.Len(t, panel.Times(), tt.wantTimes)

			for i := 1; i < panel.Len(); i++ {
				prev, cur := panel.Rows[i-1], panel.Rows[i]
				if prev.Station == cur.Station {
					assert.True(t, prev.Time.Before(cur.Time), "rows must be sorted by time within a station")
				} else {
					assert.Less(t, prev.Station, cur.Station)
				}
			}
		})
	}
}

func TestStratify_CellsWithoutObservationAreMissing(t *testing.T) {
	batch := &domain.Batch{ID: "test", Observations: []domain.Observation{
		testutil.At("A", utc(9, 0), price(1.5)),
		testutil.At("B", utc(10, 0), price(1.4)),
	}}

	panel, err := Stratify(batch, priceOptions())
	require.NoError(t, err)

	assert.Equal(t, 1.5, panel.Value(panel.Lookup("A", utc(9, 0)), "price"))
	assert.True(t, math.IsNaN(panel.Value(panel.Lookup("A", utc(10, 0)), "price")))
	assert.True(t, math.IsNaN(panel.Value(panel.Lookup("B", utc(9, 0)), "price")))
	assert.Equal(t, 1.4, panel.Value(panel.Lookup("B", utc(10, 0)), "price"))
}

func TestStratify_Duplicates(t *testing.T) {
	t.Run("last listed occurrence wins", func(t *testing.T) {
		batch := &domain.Batch{ID: "test", Observations: []domain.Observation{
			testutil.At("A", utc(9, 0), price(1.5)),
			testutil.At("A", utc(9, 0), price(1.7)),
		}}
		panel, stats, err := stratify(batch, priceOptions(), nil)
		require.NoError(t, err)
		require.Equal(t, 1, panel.Len())
		assert.Equal(t, 1.7, panel.Rows[0].Values[0])
		assert.Equal(t, 1, stats.Duplicates)
	})

	t.Run("exact duplicates are dropped", func(t *testing.T) {
		obs := testutil.At("A", utc(9, 0), price(1.5))
		obs.Attributes = map[string]string{"lat": "52.5"}
		batch := &domain.Batch{ID: "test", Observations: []domain.Observation{obs, obs, obs}}
		panel, err := Stratify(batch, priceOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, panel.Len())
	})

	t.Run("conflicting attributes are a data quality error", func(t *testing.T) {
		first := testutil.At("A", utc(9, 0), price(1.5))
		first.Attributes = map[string]string{"lat": "52.5", "lng": "13.4"}
		second := testutil.At("A", utc(9, 0), price(1.5))
		second.Attributes = map[string]string{"lat": "48.1", "lng": "11.6"}

		batch := &domain.Batch{ID: "day-1", Observations: []domain.Observation{first, second}}
		_, err := Stratify(batch, priceOptions())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDuplicateKey))
		assert.Contains(t, err.Error(), "lat")
	})
}

func TestStratify_Schema(t *testing.T) {
	tests := []struct {
		name    string
		batch   *domain.Batch
		wantErr bool
	}{
		{
			name: "declared header with all columns",
			batch: &domain.Batch{
				ID:           "ok",
				Columns:      []string{"date", "station_uuid", "price"},
				Observations: []domain.Observation{testutil.At("A", utc(9, 0), price(1.5))},
			},
		},
		{
			name: "declared header without quantity",
			batch: &domain.Batch{
				ID:           "no-price",
				Columns:      []string{"date", "station_uuid"},
				Observations: []domain.Observation{testutil.At("A", utc(9, 0), nil)},
			},
			wantErr: true,
		},
		{
			name: "declared header without station",
			batch: &domain.Batch{
				ID:      "no-station",
				Columns: []string{"date", "price"},
			},
			wantErr: true,
		},
		{
			name: "undeclared header with unreported quantity",
			batch: &domain.Batch{
				ID:           "derived",
				Observations: []domain.Observation{testutil.At("A", utc(9, 0), map[string]float64{"diesel": 1.2})},
			},
			wantErr: true,
		},
		{
			name: "empty station id",
			batch: &domain.Batch{
				ID:           "blank",
				Observations: []domain.Observation{testutil.At("", utc(9, 0), price(1.5))},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stratify(tt.batch, priceOptions())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
				assert.True(t, apperrors.IsBatchRejection(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseTimestamps(t *testing.T) {
	berlin := testutil.Berlin()

	t.Run("explicit offsets are exact", func(t *testing.T) {
		times, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "2014-06-08 09:06:01+02", nil),
			testutil.Obs("A", "2014-06-08T07:06:01Z", nil),
		}, berlin)
		require.NoError(t, err)
		want := time.Date(2014, 6, 8, 7, 6, 1, 0, time.UTC)
		assert.True(t, times[0].Equal(want))
		assert.True(t, times[1].Equal(want))
		assert.Equal(t, berlin, times[0].Location())
	})

	t.Run("civil times use the location", func(t *testing.T) {
		times, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "2014-01-15 12:00:00", nil),
			testutil.Obs("A", "2014-07-15 12:00", nil),
		}, berlin)
		require.NoError(t, err)
		assert.True(t, times[0].Equal(time.Date(2014, 1, 15, 11, 0, 0, 0, time.UTC)))
		assert.True(t, times[1].Equal(time.Date(2014, 7, 15, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("repeated hour is ordered by the batch sequence", func(t *testing.T) {
		times, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "2014-10-26 01:50:00", nil),
			testutil.Obs("A", "2014-10-26 02:30:00", nil),
			testutil.Obs("B", "2014-10-26 02:45:00", nil),
			testutil.Obs("A", "2014-10-26 02:10:00", nil),
			testutil.Obs("C", "2014-10-26 02:40:00", nil),
			testutil.Obs("A", "2014-10-26 03:05:00", nil),
		}, berlin)
		require.NoError(t, err)

		want := []time.Time{
			time.Date(2014, 10, 25, 23, 50, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 0, 30, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 0, 45, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 1, 10, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 1, 40, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 2, 5, 0, 0, time.UTC),
		}
		for i := range want {
			assert.True(t, want[i].Equal(times[i]), "row %d: want %s, got %s", i, want[i], times[i].UTC())
		}
	})

	t.Run("second step back in the repeated hour fails", func(t *testing.T) {
		_, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "2014-10-26 02:30:00", nil),
			testutil.Obs("A", "2014-10-26 02:10:00", nil),
			testutil.Obs("A", "2014-10-26 02:05:00", nil),
		}, berlin)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTimestamp))
	})

	t.Run("station sorted batch orders the repeated hour per station", func(t *testing.T) {
		times, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "2014-10-26 02:30:00", nil),
			testutil.Obs("A", "2014-10-26 02:15:00", nil),
			testutil.Obs("B", "2014-10-26 02:40:00", nil),
			testutil.Obs("B", "2014-10-26 02:20:00", nil),
			testutil.Obs("B", "2014-10-26 02:50:00", nil),
		}, berlin)
		require.NoError(t, err)

		want := []time.Time{
			time.Date(2014, 10, 26, 0, 30, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 1, 15, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 0, 40, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 1, 20, 0, 0, time.UTC),
			time.Date(2014, 10, 26, 1, 50, 0, 0, time.UTC),
		}
		for i := range want {
			assert.True(t, want[i].Equal(times[i]), "row %d: want %s, got %s", i, want[i], times[i].UTC())
		}
	})

	t.Run("skipped hour moves forward", func(t *testing.T) {
		times, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "2014-03-30 02:30:00", nil),
		}, berlin)
		require.NoError(t, err)
		assert.True(t, times[0].Equal(time.Date(2014, 3, 30, 1, 30, 0, 0, time.UTC)))
		assert.Equal(t, 3, times[0].Hour())
	})

	t.Run("garbage fails the batch", func(t *testing.T) {
		_, err := ParseTimestamps("b", []domain.Observation{
			testutil.Obs("A", "yesterday", nil),
		}, berlin)
		require.Error(t, err)
		assert.True(t, apperrors.IsBatchRejection(err))
	})
}
