package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSchema       ErrorType = "SCHEMA"
	ErrTypeDuplicateKey ErrorType = "DUPLICATE_KEY"
	ErrTypeAllMissing   ErrorType = "ALL_MISSING"
	ErrTypeTimestamp    ErrorType = "TIMESTAMP"
	ErrTypeParsing      ErrorType = "PARSING"
	ErrTypeStorage      ErrorType = "STORAGE"
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeNotFound     ErrorType = "NOT_FOUND"
	ErrTypeConfig       ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Batch-level data errors

// NewSchemaError reports required columns missing from a batch.
func NewSchemaError(batchID string, missing []string) *AppError {
	return NewAppError(ErrTypeSchema, fmt.Sprintf("batch %s is missing required columns %v", batchID, missing), nil).
		WithContext("batch", batchID).
		WithContext("missing_columns", missing)
}

// NewDuplicateKeyError reports a (station, timestamp) key that maps to
// conflicting station data after duplicate resolution.
func NewDuplicateKeyError(batchID, station, timestamp, detail string) *AppError {
	return NewAppError(ErrTypeDuplicateKey,
		fmt.Sprintf("conflicting rows for station %s at %s: %s", station, timestamp, detail), nil).
		WithContext("batch", batchID).
		WithContext("station", station).
		WithContext("timestamp", timestamp)
}

// NewAllMissingError reports a station quantity without any real observation.
func NewAllMissingError(batchID, station, quantity string) *AppError {
	return NewAppError(ErrTypeAllMissing,
		fmt.Sprintf("station %s has no %s observation and no usable closing state", station, quantity), nil).
		WithContext("batch", batchID).
		WithContext("station", station).
		WithContext("quantity", quantity)
}

// NewTimestampError reports a timestamp that cannot be placed on the time axis.
func NewTimestampError(batchID, raw string, cause error) *AppError {
	return NewAppError(ErrTypeTimestamp, fmt.Sprintf("cannot place timestamp %q", raw), cause).
		WithContext("batch", batchID).
		WithContext("timestamp", raw)
}

// Helper functions for common error types

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}

// IsBatchRejection reports whether err must reject a whole batch.
func IsBatchRejection(err error) bool {
	t, ok := TypeOf(err)
	if !ok {
		return false
	}
	switch t {
	case ErrTypeSchema, ErrTypeDuplicateKey, ErrTypeTimestamp, ErrTypeParsing:
		return true
	}
	return false
}
