package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    &AppError{Type: ErrTypeValidation, Message: "bin width must be positive"},
			wantMessage: "[VALIDATION] bin width must be positive",
		},
		{
			name:        "error with cause",
			appError:    &AppError{Type: ErrTypeStorage, Message: "failed to write panel", Cause: fmt.Errorf("disk full")},
			wantMessage: "[STORAGE] failed to write panel: disk full",
		},
		{
			name:        "error with empty message",
			appError:    &AppError{Type: ErrTypeConfig},
			wantMessage: "[CONFIG] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_UnwrapAndContext(t *testing.T) {
	cause := errors.New("no such file")
	err := NewStorageError("failed to open batch", cause).
		WithContext("path", "2014/06/2014-06-08-prices.csv").
		WithContext("attempt", 2)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "2014/06/2014-06-08-prices.csv", err.Context["path"])
	assert.Equal(t, 2, err.Context["attempt"])

	bare := &AppError{Type: ErrTypeParsing}
	bare.WithContext("line", 7)
	assert.Equal(t, 7, bare.Context["line"])
}

func TestBatchErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		contains string
		context  map[string]interface{}
	}{
		{
			name:     "schema",
			err:      NewSchemaError("b1", []string{"e10"}),
			wantType: ErrTypeSchema,
			contains: "missing required columns [e10]",
			context:  map[string]interface{}{"batch": "b1"},
		},
		{
			name:     "duplicate key",
			err:      NewDuplicateKeyError("b1", "A", "2014-06-08T09:00:00+02:00", "diesel differs"),
			wantType: ErrTypeDuplicateKey,
			contains: "conflicting rows for station A",
			context:  map[string]interface{}{"batch": "b1", "station": "A"},
		},
		{
			name:     "all missing",
			err:      NewAllMissingError("b1", "B", "e5"),
			wantType: ErrTypeAllMissing,
			contains: "station B has no e5 observation",
			context:  map[string]interface{}{"quantity": "e5"},
		},
		{
			name:     "timestamp",
			err:      NewTimestampError("b1", "yesterday", errors.New("bad layout")),
			wantType: ErrTypeTimestamp,
			contains: `cannot place timestamp "yesterday"`,
			context:  map[string]interface{}{"timestamp": "yesterday"},
		},
		{
			name:     "not found",
			err:      NewNotFoundError("job 42"),
			wantType: ErrTypeNotFound,
			contains: "job 42 not found",
		},
		{
			name:     "config",
			err:      NewConfigError("unknown timezone", nil),
			wantType: ErrTypeConfig,
			contains: "unknown timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Contains(t, tt.err.Error(), tt.contains)
			for k, v := range tt.context {
				assert.Equal(t, v, tt.err.Context[k], k)
			}
		})
	}
}

func TestTypeOfAndIsType(t *testing.T) {
	wrapped := fmt.Errorf("processing batch: %w", NewParsingError("bad number", nil))

	got, ok := TypeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrTypeParsing, got)
	assert.True(t, IsType(wrapped, ErrTypeParsing))
	assert.False(t, IsType(wrapped, ErrTypeStorage))

	_, ok = TypeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsType(nil, ErrTypeParsing))
}

func TestIsBatchRejection(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewSchemaError("b", nil), true},
		{NewDuplicateKeyError("b", "A", "t", "x"), true},
		{NewTimestampError("b", "t", nil), true},
		{NewParsingError("x", nil), true},
		{NewAllMissingError("b", "A", "e5"), false},
		{NewStorageError("x", nil), false},
		{NewAppValidationError("x"), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBatchRejection(tt.err), tt.err.Error())
	}
}
