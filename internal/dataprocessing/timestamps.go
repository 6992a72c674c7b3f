package dataprocessing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// Layouts carrying an explicit UTC offset. The raw exports write short
// offsets like "2014-06-08 09:06:01+02".
var offsetLayouts = []string{
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// Layouts of civil times without offset.
var civilLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseRaw parses a raw timestamp. Civil times are returned as a UTC
// wall clock with hasOffset false.
func parseRaw(raw string) (t time.Time, hasOffset bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("empty timestamp")
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	for _, layout := range civilLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp format")
}

// civilCandidates returns the instants whose wall clock in loc equals civ.
// None means civ falls into a spring-forward gap, two means it lies in the
// repeated hour of a fall-back transition.
func civilCandidates(civ time.Time, loc *time.Location) []time.Time {
	var out []time.Time
	for _, probe := range []time.Time{civ.Add(-36 * time.Hour), civ.Add(36 * time.Hour)} {
		_, off := probe.In(loc).Zone()
		inst := civ.Add(-time.Duration(off) * time.Second)
		if _, got := inst.In(loc).Zone(); got != off {
			continue
		}
		dup := false
		for _, o := range out {
			if o.Equal(inst) {
				dup = true
			}
		}
		if !dup {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// shiftForward places a civil time that does not exist in loc after the gap.
func shiftForward(civ time.Time, loc *time.Location) time.Time {
	_, off := civ.Add(-36 * time.Hour).In(loc).Zone()
	return civ.Add(-time.Duration(off) * time.Second)
}

var errRepeatedHourOrder = errors.New("repeated hour steps backwards twice")

// repeatedHour tracks the civil times seen inside the repeated hour of one
// fall-back day.
type repeatedHour struct {
	day        time.Time
	last       time.Time
	rolledBack bool
}

// ParseTimestamps places every observation of a batch on the time axis of loc.
//
// Observations that already carry a native time are converted to loc. Raw
// strings with an offset are exact. Civil times inside the repeated hour of a
// fall-back transition take the first occurrence until the wall clock steps
// backwards, then the second one. The order is read from the whole batch,
// which fits exports sorted by time. When the batch steps backwards twice
// inside the same repeated hour, as an export sorted by station does, the
// order is read from the rows of each station instead. A station stepping
// backwards twice cannot be ordered and fails the batch.
func ParseTimestamps(batchID string, observations []domain.Observation, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	out, err := placeTimestamps(batchID, observations, loc, false)
	if errors.Is(err, errRepeatedHourOrder) {
		return placeTimestamps(batchID, observations, loc, true)
	}
	return out, err
}

func placeTimestamps(batchID string, observations []domain.Observation, loc *time.Location, perStation bool) ([]time.Time, error) {
	out := make([]time.Time, len(observations))
	seen := make(map[string]*repeatedHour)

	for i, obs := range observations {
		if obs.HasTime() {
			out[i] = obs.Time.In(loc)
			continue
		}
		t, hasOffset, err := parseRaw(obs.RawTime)
		if err != nil {
			return nil, apperrors.NewTimestampError(batchID, obs.RawTime, err)
		}
		if hasOffset {
			out[i] = t.In(loc)
			continue
		}

		cands := civilCandidates(t, loc)
		switch len(cands) {
		case 0:
			out[i] = shiftForward(t, loc).In(loc)
		case 1:
			out[i] = cands[0].In(loc)
		default:
			key := ""
			if perStation {
				key = obs.StationID
			}
			day := t.Truncate(24 * time.Hour)
			state, ok := seen[key]
			if !ok || !state.day.Equal(day) {
				state = &repeatedHour{day: day, last: t}
				seen[key] = state
			}
			if t.Before(state.last) {
				if state.rolledBack {
					return nil, apperrors.NewTimestampError(batchID, obs.RawTime,
						fmt.Errorf("%w on %s", errRepeatedHourOrder, t.Format("2006-01-02")))
				}
				state.rolledBack = true
			}
			state.last = t
			if state.rolledBack {
				out[i] = cands[1].In(loc)
			} else {
				out[i] = cands[0].In(loc)
			}
		}
	}
	return out, nil
}
