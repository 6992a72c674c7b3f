package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// ClosingRecord is the last known observation of a station at the end of a batch.
type ClosingRecord struct {
	Station string
	Time    time.Time
	Values  map[string]float64
}

// Value returns a quantity of the record and whether it is usable for carry-over.
// Missing and zero values are not usable.
func (r ClosingRecord) Value(quantity string) (float64, bool) {
	v, ok := r.Values[quantity]
	if !ok || IsMissing(v) || v == 0 {
		return 0, false
	}
	return v, true
}

func (r ClosingRecord) clone() ClosingRecord {
	vals := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		vals[k] = v
	}
	return ClosingRecord{Station: r.Station, Time: r.Time, Values: vals}
}

// MarshalJSON encodes missing values as null.
func (r ClosingRecord) MarshalJSON() ([]byte, error) {
	vals := make(map[string]*float64, len(r.Values))
	for k, v := range r.Values {
		if IsMissing(v) {
			vals[k] = nil
			continue
		}
		v := v
		vals[k] = &v
	}
	return json.Marshal(struct {
		Station string              `json:"station"`
		Time    time.Time           `json:"time"`
		Values  map[string]*float64 `json:"values"`
	}{r.Station, r.Time, vals})
}

// ClosingState holds exactly one closing record per station.
// It is an immutable snapshot: every method returning a state returns a new one,
// so a snapshot handed to a batch can never be changed by a later batch.
type ClosingState struct {
	records map[string]ClosingRecord
}

// NewClosingState builds a snapshot from records. Later records for the
// same station replace earlier ones.
func NewClosingState(records ...ClosingRecord) ClosingState {
	m := make(map[string]ClosingRecord, len(records))
	for _, r := range records {
		m[r.Station] = r.clone()
	}
	return ClosingState{records: m}
}

// Len returns the number of stations in the snapshot.
func (s ClosingState) Len() int {
	return len(s.records)
}

// IsEmpty reports whether the snapshot carries no station, which is the case
// before the first batch of a run.
func (s ClosingState) IsEmpty() bool {
	return len(s.records) == 0
}

// Get returns a copy of the record of a station.
func (s ClosingState) Get(station string) (ClosingRecord, bool) {
	r, ok := s.records[station]
	if !ok {
		return ClosingRecord{}, false
	}
	return r.clone(), true
}

// Records returns copies of all records sorted by station.
func (s ClosingState) Records() []ClosingRecord {
	out := make([]ClosingRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out
}

// Merge returns a snapshot where records of newer replace those of s
// station by station. Stations absent from newer keep their record.
func (s ClosingState) Merge(newer ClosingState) ClosingState {
	m := make(map[string]ClosingRecord, len(s.records)+len(newer.records))
	for k, r := range s.records {
		m[k] = r
	}
	for k, r := range newer.records {
		m[k] = r
	}
	return ClosingState{records: m}
}

// Filter returns the snapshot restricted to stations accepted by keep.
func (s ClosingState) Filter(keep func(station string) bool) ClosingState {
	m := make(map[string]ClosingRecord)
	for k, r := range s.records {
		if keep(k) {
			m[k] = r
		}
	}
	return ClosingState{records: m}
}

// MarshalJSON encodes the snapshot as a station-sorted list.
func (s ClosingState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Records())
}

// ClosingHistoryEntry is the closing snapshot in force after one batch.
type ClosingHistoryEntry struct {
	BatchID string
	State   ClosingState
}

// ClosingHistory collects successive closing snapshots for diagnostics.
type ClosingHistory struct {
	entries []ClosingHistoryEntry
}

// Append records the snapshot in force after a batch.
func (h *ClosingHistory) Append(batchID string, state ClosingState) {
	h.entries = append(h.entries, ClosingHistoryEntry{BatchID: batchID, State: state})
}

// Entries returns the recorded snapshots in chronological order.
func (h *ClosingHistory) Entries() []ClosingHistoryEntry {
	out := make([]ClosingHistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded snapshots.
func (h *ClosingHistory) Len() int {
	return len(h.entries)
}
