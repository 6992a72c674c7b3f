package dataprocessing

import (
	"math"
	"time"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// MeanPrecision is the number of decimals batch means are rounded to.
const MeanPrecision = 3

// ExtractMetadata summarizes a filled panel: the calendar date of its latest
// timestamp in loc and the mean of each quantity over all defined cells.
// A quantity without any defined cell has a missing mean.
func ExtractMetadata(panel *domain.Panel, batchID string, quantities []string, loc *time.Location) (domain.BatchMetadata, error) {
	_, latest, ok := panel.TimeSpan()
	if !ok {
		return domain.BatchMetadata{}, apperrors.NewAppValidationError("cannot summarize an empty panel").
			WithContext("batch", batchID)
	}
	if loc == nil {
		loc = latest.Location()
	}
	local := latest.In(loc)

	meta := domain.BatchMetadata{
		BatchID:  batchID,
		Date:     time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
		Means:    make(map[string]float64, len(quantities)),
		Rows:     panel.Len(),
		Stations: len(panel.Stations()),
	}
	for _, q := range quantities {
		col := panel.ColumnIndex(q)
		if col < 0 {
			return domain.BatchMetadata{}, apperrors.NewSchemaError(batchID, []string{q})
		}
		sum, n := 0.0, 0
		for _, row := range panel.Rows {
			if v := row.Values[col]; !domain.IsMissing(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			meta.Means[q] = domain.Missing()
			continue
		}
		meta.Means[q] = roundTo(sum/float64(n), MeanPrecision)
	}
	return meta, nil
}

// ExtractClosingState keeps the chronologically last row of every station.
func ExtractClosingState(panel *domain.Panel, quantities []string) domain.ClosingState {
	cols := make([]int, len(quantities))
	for i, q := range quantities {
		cols[i] = panel.ColumnIndex(q)
	}

	records := make([]domain.ClosingRecord, 0)
	for _, r := range panel.StationRanges() {
		last := r.Start
		for i := r.Start + 1; i < r.End; i++ {
			if !panel.Rows[i].Time.Before(panel.Rows[last].Time) {
				last = i
			}
		}
		row := panel.Rows[last]
		vals := make(map[string]float64, len(quantities))
		for i, q := range quantities {
			if cols[i] < 0 {
				vals[q] = domain.Missing()
				continue
			}
			vals[q] = row.Values[cols[i]]
		}
		records = append(records, domain.ClosingRecord{Station: r.Station, Time: row.Time, Values: vals})
	}
	return domain.NewClosingState(records...)
}

// roundTo rounds half to even at the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*scale) / scale
}
