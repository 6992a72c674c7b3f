package dataprocessing

import (
	"fuelpanel/pkg/contracts/domain"
)

// ResolveOpening seeds the earliest row of every station with the values of
// its closing record from the previous batch. Only missing cells are filled
// and no other row is touched. Stations without a closing record are left as
// they are, and an empty closing state leaves the panel unchanged.
//
// The input panel is not modified; a new panel is returned.
func ResolveOpening(panel *domain.Panel, closing domain.ClosingState, quantities []string) *domain.Panel {
	out, _ := resolveOpening(panel, closing, quantities)
	return out
}

func resolveOpening(panel *domain.Panel, closing domain.ClosingState, quantities []string) (*domain.Panel, int) {
	out := panel.Clone()
	if closing.IsEmpty() {
		return out, 0
	}

	cols := make([]int, len(quantities))
	for i, q := range quantities {
		cols[i] = out.ColumnIndex(q)
	}

	filled := 0
	for _, r := range out.StationRanges() {
		record, ok := closing.Get(r.Station)
		if !ok {
			continue
		}
		row := out.Rows[r.Start].Values
		for i, q := range quantities {
			c := cols[i]
			if c < 0 || !domain.IsMissing(row[c]) {
				continue
			}
			if v, usable := record.Value(q); usable {
				row[c] = v
				filled++
			}
		}
	}
	return out, filled
}
