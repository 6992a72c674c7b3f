package dataprocessing

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// Stratify expands the sparse observations of a batch into the dense
// cross product of its distinct stations and distinct timestamps, sorted by
// station then time. Cells without an observation are missing. No timestamp
// is invented: only instants present in the batch make up the time axis.
func Stratify(batch *domain.Batch, opts Options) (*domain.Panel, error) {
	panel, _, err := stratify(batch, opts, nil)
	return panel, err
}

// PlaceTimestamps checks the schema of a batch and returns a copy whose
// observations all carry their instant in the time zone of opts, with the
// sorted distinct instants of the batch. Station subsets of the copy
// stratified against that axis make up the panel of the whole batch.
func PlaceTimestamps(batch *domain.Batch, opts Options) (*domain.Batch, []time.Time, error) {
	if err := validateSchema(batch, opts); err != nil {
		return nil, nil, err
	}
	times, err := ParseTimestamps(batch.ID, batch.Observations, opts.location())
	if err != nil {
		return nil, nil, err
	}

	placed := &domain.Batch{
		ID:           batch.ID,
		Columns:      batch.Columns,
		Observations: make([]domain.Observation, len(batch.Observations)),
	}
	for i, obs := range batch.Observations {
		obs.Time = times[i]
		placed.Observations[i] = obs
	}
	return placed, distinctTimes(times), nil
}

func distinctTimes(times []time.Time) []time.Time {
	seen := make(map[int64]struct{}, len(times))
	axis := make([]time.Time, 0, len(times))
	for _, ts := range times {
		if _, ok := seen[ts.UnixNano()]; ok {
			continue
		}
		seen[ts.UnixNano()] = struct{}{}
		axis = append(axis, ts)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}

type placedObservation struct {
	obs domain.Observation
	ts  time.Time
}

// stratify builds the panel of a batch. A nil axis is taken from the batch
// itself; a given axis must hold every instant of the batch.
func stratify(batch *domain.Batch, opts Options, axis []time.Time) (*domain.Panel, BatchStatistics, error) {
	stats := BatchStatistics{Observations: len(batch.Observations)}

	if err := validateSchema(batch, opts); err != nil {
		return nil, stats, err
	}

	times, err := ParseTimestamps(batch.ID, batch.Observations, opts.location())
	if err != nil {
		return nil, stats, err
	}

	kept, duplicates, err := dedupe(batch.ID, batch.Observations, times)
	if err != nil {
		return nil, stats, err
	}
	stats.Duplicates = duplicates

	if axis == nil {
		axis = distinctTimes(times)
	}
	onAxis := make(map[int64]bool, len(axis))
	for _, ts := range axis {
		onAxis[ts.UnixNano()] = true
	}

	stationSet := make(map[string]struct{})
	cells := make(map[string]map[int64]domain.Observation)
	for _, p := range kept {
		if !onAxis[p.ts.UnixNano()] {
			return nil, stats, apperrors.NewTimestampError(batch.ID, p.obs.RawTime,
				fmt.Errorf("%s is not on the time axis of the batch", p.ts.Format(time.RFC3339)))
		}
		stationSet[p.obs.StationID] = struct{}{}
		if cells[p.obs.StationID] == nil {
			cells[p.obs.StationID] = make(map[int64]domain.Observation)
		}
		cells[p.obs.StationID][p.ts.UnixNano()] = p.obs
	}

	stations := make([]string, 0, len(stationSet))
	for s := range stationSet {
		stations = append(stations, s)
	}
	sort.Strings(stations)

	panel := domain.NewPanel(opts.Quantities)
	panel.Rows = make([]domain.PanelRow, 0, len(stations)*len(axis))
	for _, station := range stations {
		for _, ts := range axis {
			vals := make([]float64, len(opts.Quantities))
			obs, ok := cells[station][ts.UnixNano()]
			for i, q := range opts.Quantities {
				vals[i] = domain.Missing()
				if !ok {
					continue
				}
				if v, present := obs.Values[q]; present {
					vals[i] = v
				}
			}
			panel.Rows = append(panel.Rows, domain.PanelRow{Station: station, Time: ts, Values: vals})
		}
	}

	stats.Stations = len(stations)
	stats.Timestamps = len(axis)
	stats.Rows = panel.Len()
	return panel, stats, nil
}

// validateSchema checks the batch declares the key columns and every quantity.
// A batch built in code without a header is checked against its observations.
func validateSchema(batch *domain.Batch, opts Options) error {
	if len(opts.Quantities) == 0 {
		return apperrors.NewAppValidationError("no quantity columns declared")
	}
	required := append([]string{opts.StationColumn, opts.TimeColumn}, opts.Quantities...)

	var missing []string
	if len(batch.Columns) == 0 {
		seen := make(map[string]bool)
		for _, obs := range batch.Observations {
			for q := range obs.Values {
				seen[q] = true
			}
		}
		for _, q := range opts.Quantities {
			if !seen[q] && len(batch.Observations) > 0 {
				missing = append(missing, q)
			}
		}
	} else {
		for _, col := range required {
			if col == "" || !batch.HasColumn(col) {
				missing = append(missing, col)
			}
		}
	}
	if len(missing) > 0 {
		return apperrors.NewSchemaError(batch.ID, missing)
	}
	for i, obs := range batch.Observations {
		if obs.StationID == "" {
			return apperrors.NewSchemaError(batch.ID, []string{opts.StationColumn}).
				WithContext("row", i)
		}
	}
	return nil
}

// dedupe resolves repeated (station, timestamp) keys. Exact repeats are
// dropped, repeats that only disagree on prices keep the last-listed row,
// and repeats that disagree on station attributes are a data-quality error.
func dedupe(batchID string, observations []domain.Observation, times []time.Time) ([]placedObservation, int, error) {
	index := make(map[string]int, len(observations))
	kept := make([]placedObservation, 0, len(observations))
	duplicates := 0

	for i, obs := range observations {
		key := obs.StationID + "\x00" + strconv.FormatInt(times[i].UnixNano(), 10)
		j, seen := index[key]
		if !seen {
			index[key] = len(kept)
			kept = append(kept, placedObservation{obs: obs, ts: times[i]})
			continue
		}
		duplicates++
		prev := kept[j].obs
		if sameValues(prev.Values, obs.Values) && sameAttributes(prev.Attributes, obs.Attributes) {
			continue
		}
		if !sameAttributes(prev.Attributes, obs.Attributes) {
			return nil, duplicates, apperrors.NewDuplicateKeyError(batchID, obs.StationID,
				times[i].Format(time.RFC3339), describeAttributeConflict(prev.Attributes, obs.Attributes))
		}
		kept[j] = placedObservation{obs: obs, ts: times[i]}
	}
	return kept, duplicates, nil
}

func sameValues(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return false
		}
		if va != vb && !(domain.IsMissing(va) && domain.IsMissing(vb)) {
			return false
		}
	}
	return true
}

func sameAttributes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		if vb, ok := b[k]; !ok || va != vb {
			return false
		}
	}
	return true
}

func describeAttributeConflict(a, b map[string]string) string {
	keys := make(map[string]struct{})
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	var names []string
	for k := range keys {
		if a[k] != b[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "attributes differ"
	}
	k := names[0]
	return fmt.Sprintf("%s is both %q and %q", k, a[k], b[k])
}
