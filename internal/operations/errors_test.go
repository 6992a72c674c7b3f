package operations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "fuelpanel/internal/errors"
)

func TestRunError(t *testing.T) {
	cause := errors.New("permission denied")

	tests := []struct {
		name     string
		err      *RunError
		expected string
	}{
		{
			name:     "discovery",
			err:      NewDiscoveryError(cause),
			expected: "[discovery] discovery: failed to discover batch files: permission denied",
		},
		{
			name:     "export",
			err:      NewExportError(cause),
			expected: "[export] export: failed to write run outputs: permission denied",
		},
		{
			name:     "without stage or cause",
			err:      ErrRunInProgress,
			expected: "[invalid_state] a run is already in progress",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "unknown run error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}

	assert.ErrorIs(t, NewDiscoveryError(cause), cause)
	assert.ErrorIs(t, NewCancellationError(context.Canceled), context.Canceled)
	assert.Nil(t, (*RunError)(nil).Unwrap())
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"schema", apperrors.NewSchemaError("b", []string{"e10"}), "SCHEMA"},
		{"wrapped timestamp", errors.Join(errors.New("ctx"), apperrors.NewTimestampError("b", "x", nil)), "TIMESTAMP"},
		{"run error", NewExportError(errors.New("x")), "export"},
		{"plain", errors.New("boom"), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, failureKind(tt.err))
		})
	}
}
