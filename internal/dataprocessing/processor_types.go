package dataprocessing

import (
	"time"

	"fuelpanel/pkg/contracts/domain"
)

// DefaultTimezone is the civil time zone of the raw price exports.
const DefaultTimezone = "Europe/Berlin"

// Options configures the per-batch stages. It is passed by value to every
// call; there is no package-level mutable default.
type Options struct {
	// StationColumn and TimeColumn name the key columns of the raw header.
	StationColumn string
	TimeColumn    string

	// Quantities are the measured columns that get stratified and filled.
	Quantities []string

	// Location is the zone timestamps are placed in.
	Location *time.Location
}

// DefaultOptions returns the options matching the raw price exports:
// diesel, e5 and e10 prices keyed by station_uuid and date.
func DefaultOptions() Options {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return Options{
		StationColumn: domain.DefaultStationColumn,
		TimeColumn:    domain.DefaultTimeColumn,
		Quantities:    []string{"diesel", "e5", "e10"},
		Location:      loc,
	}
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// BatchStatistics represents what happened to one batch on its way through the stages
type BatchStatistics struct {
	Observations  int
	Duplicates    int
	Stations      int
	Timestamps    int
	Rows          int
	CarriedOver   int
	ZeroPrices    int
	MissingSeries int
}
