package exporter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fuelpanel/internal/shared/testutil"
	"fuelpanel/pkg/contracts/domain"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero value", input: 0.0, expected: "0"},
		{name: "positive integer", input: 123.0, expected: "123"},
		{name: "negative integer", input: -456.0, expected: "-456"},
		{name: "price", input: 1.459, expected: "1.459"},
		{name: "mean rounded to three decimals", input: 1.5, expected: "1.5"},
		{name: "very small positive number", input: 0.000001, expected: "0.000001"},
		{name: "missing value", input: domain.Missing(), expected: ""},
		{name: "positive infinity", input: math.Inf(1), expected: ""},
		{name: "negative infinity", input: math.Inf(-1), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "42", formatInt(42))
	assert.Equal(t, "-7", formatInt(-7))
}

func TestFormatTime(t *testing.T) {
	berlin := testutil.Berlin()

	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "summer time",
			input:    time.Date(2014, 6, 8, 9, 0, 0, 0, berlin),
			expected: "2014-06-08 09:00:00+02:00",
		},
		{
			name:     "winter time",
			input:    time.Date(2014, 12, 24, 18, 30, 5, 0, berlin),
			expected: "2014-12-24 18:30:05+01:00",
		},
		{
			name:     "utc",
			input:    time.Date(2014, 6, 8, 7, 0, 0, 0, time.UTC),
			expected: "2014-06-08 07:00:00+00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatTime(tt.input))
		})
	}

	assert.Equal(t, "2014-06-08", formatDate(time.Date(2014, 6, 8, 23, 59, 0, 0, berlin)))
}
