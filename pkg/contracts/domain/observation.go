package domain

import (
	"time"
)

// Default column names used by the raw price exports.
const (
	DefaultStationColumn = "station_uuid"
	DefaultTimeColumn    = "date"
)

// Observation is a single raw price report of one station.
// Prices are only reported when they change, so most stations have
// no observation for most timestamps of a batch.
type Observation struct {
	StationID string `json:"station_id" validate:"required"`

	// RawTime is the timestamp as it appeared in the source file.
	// It is parsed by the stratifier unless Time is already set.
	RawTime string    `json:"raw_time,omitempty"`
	Time    time.Time `json:"time,omitempty"`

	// Values holds the reported quantities. An absent key means the
	// quantity was not reported; a zero value means "not observed".
	Values map[string]float64 `json:"values"`

	// Attributes holds every other column of the row (coordinates, brand, ...).
	Attributes map[string]string `json:"attributes,omitempty"`
}

// HasTime reports whether the observation carries a native timestamp.
func (o Observation) HasTime() bool {
	return !o.Time.IsZero()
}

// Batch is one unit of input, typically a full calendar day of observations.
type Batch struct {
	// ID identifies the batch in logs and outputs, usually its relative file path.
	ID string `json:"id" validate:"required"`

	// Columns is the header declared by the source, in source order.
	Columns []string `json:"columns"`

	// Observations are kept in source order; the order matters for
	// duplicate resolution and for DST ambiguity inference.
	Observations []Observation `json:"observations"`
}

// HasColumn reports whether the batch header declares the given column.
func (b *Batch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FilterStations returns a copy of the batch holding only observations
// of stations accepted by keep. The header is shared.
func (b *Batch) FilterStations(keep func(station string) bool) *Batch {
	out := &Batch{
		ID:           b.ID,
		Columns:      b.Columns,
		Observations: make([]Observation, 0, len(b.Observations)),
	}
	for _, obs := range b.Observations {
		if keep(obs.StationID) {
			out.Observations = append(out.Observations, obs)
		}
	}
	return out
}

// StationIDs returns the distinct station ids in first-seen order.
func (b *Batch) StationIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, obs := range b.Observations {
		if _, ok := seen[obs.StationID]; ok {
			continue
		}
		seen[obs.StationID] = struct{}{}
		ids = append(ids, obs.StationID)
	}
	return ids
}
