package dataprocessing

import (
	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// FillReport describes the outcome of FillGaps.
type FillReport struct {
	// Indicators lists the active-indicator columns of the filled panel.
	Indicators []string
	// Missing lists station quantities without any real observation.
	// Their cells stay missing.
	Missing []domain.MissingSeries
	// ZeroPrices counts cells that carried the zero sentinel.
	ZeroPrices int
}

// Warnings converts the missing series into AllMissing errors for batchID.
func (r *FillReport) Warnings(batchID string) []error {
	if r == nil || len(r.Missing) == 0 {
		return nil
	}
	out := make([]error, 0, len(r.Missing))
	for _, m := range r.Missing {
		out = append(out, apperrors.NewAllMissingError(batchID, m.Station, m.Quantity))
	}
	return out
}

// FillGaps removes gaps from every quantity of a stratified panel, station by
// station, and adds one active-indicator column per quantity.
//
// The stages run in this order:
//  1. forward fill, then backward fill
//  2. zero prices become missing
//  3. the indicator is 1 where a value is defined, 0 otherwise
//  4. forward fill, then backward fill again
//
// Fills never cross station boundaries. A station whose quantity has no real
// observation keeps missing cells and is listed in the report. Indicator
// columns already present in the input are kept as they are, so filling a
// filled panel again changes nothing.
func FillGaps(panel *domain.Panel, quantities []string) (*domain.Panel, *FillReport, error) {
	var missingCols []string
	for _, q := range quantities {
		if !panel.HasColumn(q) {
			missingCols = append(missingCols, q)
		}
	}
	if len(missingCols) > 0 {
		return nil, nil, apperrors.NewSchemaError("", missingCols)
	}

	out := panel.Clone()
	report := &FillReport{}
	ranges := out.StationRanges()

	for _, q := range quantities {
		col := out.ColumnIndex(q)
		indicatorName := domain.ActiveColumn(q)
		keepIndicator := out.HasColumn(indicatorName)
		ind := out.AddColumn(indicatorName, 0)
		report.Indicators = append(report.Indicators, indicatorName)

		for _, r := range ranges {
			directionalFill(out, col, r)

			for i := r.Start; i < r.End; i++ {
				if out.Rows[i].Values[col] == 0 {
					out.Rows[i].Values[col] = domain.Missing()
					report.ZeroPrices++
				}
			}

			if !keepIndicator {
				for i := r.Start; i < r.End; i++ {
					if domain.IsMissing(out.Rows[i].Values[col]) {
						out.Rows[i].Values[ind] = 0
					} else {
						out.Rows[i].Values[ind] = 1
					}
				}
			}

			if !directionalFill(out, col, r) {
				report.Missing = append(report.Missing, domain.MissingSeries{Station: r.Station, Quantity: q})
			}
		}
	}
	return out, report, nil
}

// directionalFill forward fills, then backward fills one column inside a
// station range. It reports whether any defined value exists in the range.
func directionalFill(p *domain.Panel, col int, r domain.StationRange) bool {
	last := domain.Missing()
	first := -1
	for i := r.Start; i < r.End; i++ {
		v := p.Rows[i].Values[col]
		if domain.IsMissing(v) {
			p.Rows[i].Values[col] = last
			continue
		}
		if first < 0 {
			first = i
		}
		last = v
	}
	if first < 0 {
		return false
	}
	lead := p.Rows[first].Values[col]
	for i := r.Start; i < first; i++ {
		p.Rows[i].Values[col] = lead
	}
	return true
}
