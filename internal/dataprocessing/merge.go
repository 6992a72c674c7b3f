package dataprocessing

import (
	"fmt"
	"strings"

	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// Merge concatenates processed panels and sorts the result by station, then
// time. The sort is stable, so rows sharing a key keep their input order.
// All panels must carry the same columns in the same order.
func Merge(panels ...*domain.Panel) (*domain.Panel, error) {
	var out *domain.Panel
	for i, p := range panels {
		if p == nil {
			continue
		}
		if out == nil {
			out = domain.NewPanel(p.Columns)
		} else if !sameColumns(out.Columns, p.Columns) {
			return nil, apperrors.NewSchemaError(fmt.Sprintf("panel %d", i), diffColumns(out.Columns, p.Columns)).
				WithContext("expected", out.Columns).
				WithContext("got", p.Columns)
		}
		for _, row := range p.Rows {
			out.AppendRow(row.Station, row.Time, row.Values)
		}
	}
	if out == nil {
		return domain.NewPanel(nil), nil
	}
	out.Sort()
	return out, nil
}

// Split partitions the columns of a wide panel by name token. Each token
// yields a panel with the columns whose name contains it, keyed like the
// input. Tokens matching no column yield a panel without value columns.
func Split(panel *domain.Panel, tokens []string) map[string]*domain.Panel {
	out := make(map[string]*domain.Panel, len(tokens))
	for _, token := range tokens {
		var cols []string
		for _, c := range panel.Columns {
			if strings.Contains(c, token) {
				cols = append(cols, c)
			}
		}
		out[token] = panel.SelectColumns(cols)
	}
	return out
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffColumns(want, got []string) []string {
	have := make(map[string]bool, len(got))
	for _, c := range got {
		have[c] = true
	}
	var diff []string
	for _, c := range want {
		if !have[c] {
			diff = append(diff, c)
		}
	}
	if len(diff) == 0 {
		return got
	}
	return diff
}
