package domain

import (
	"encoding/json"
	"time"
)

// BatchMetadata summarizes one processed batch.
type BatchMetadata struct {
	BatchID  string
	Date     time.Time
	Means    map[string]float64
	Rows     int
	Stations int
}

// MarshalJSON encodes the record with missing means as null.
func (m BatchMetadata) MarshalJSON() ([]byte, error) {
	means := make(map[string]*float64, len(m.Means))
	for k, v := range m.Means {
		if IsMissing(v) {
			means[k] = nil
			continue
		}
		v := v
		means[k] = &v
	}
	return json.Marshal(struct {
		BatchID  string              `json:"batch_id"`
		Date     string              `json:"date"`
		Means    map[string]*float64 `json:"means"`
		Rows     int                 `json:"rows"`
		Stations int                 `json:"stations"`
	}{m.BatchID, m.Date.Format("2006-01-02"), means, m.Rows, m.Stations})
}

// MissingSeries names a station whose quantity had no real observation
// anywhere in a batch and could not be filled.
type MissingSeries struct {
	Station  string `json:"station"`
	Quantity string `json:"quantity"`
}

// FailedBatch records a batch that was rejected during a run.
type FailedBatch struct {
	BatchID string `json:"batch_id"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}
