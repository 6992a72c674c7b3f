package exporter

import (
	"math"
	"strconv"
	"time"

	"fuelpanel/pkg/contracts/domain"
)

// formatFloat formats a value for CSV output in its shortest exact form.
// Missing values become an empty cell.
func formatFloat(f float64) string {
	if domain.IsMissing(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an integer value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatTime formats a panel timestamp with its UTC offset
func formatTime(t time.Time) string {
	return t.Format(domain.TimeLayout)
}

// formatDate formats the calendar date of t
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
