package operations

import (
	"fmt"

	apperrors "fuelpanel/internal/errors"
)

// ErrorType represents the type of run error
type ErrorType string

const (
	ErrorTypeDiscovery    ErrorType = "discovery"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeExport       ErrorType = "export"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// RunError represents a failure of a run as a whole. Rejected batches are
// not run errors; they are listed in the run summary.
type RunError struct {
	Type    ErrorType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *RunError) Error() string {
	if e == nil {
		return "unknown run error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewDiscoveryError creates an error for a failed input scan
func NewDiscoveryError(cause error) *RunError {
	return &RunError{
		Type:    ErrorTypeDiscovery,
		Stage:   StageDiscovery,
		Message: "failed to discover batch files",
		Cause:   cause,
	}
}

// NewExportError creates an error for failed run outputs
func NewExportError(cause error) *RunError {
	return &RunError{
		Type:    ErrorTypeExport,
		Stage:   StageExport,
		Message: "failed to write run outputs",
		Cause:   cause,
	}
}

// NewCancellationError creates a cancellation error
func NewCancellationError(cause error) *RunError {
	return &RunError{
		Type:    ErrorTypeCancellation,
		Stage:   StageProcessing,
		Message: "run was cancelled",
		Cause:   cause,
	}
}

// ErrRunInProgress is returned when a run is requested while another one is
// still executing
var ErrRunInProgress = &RunError{
	Type:    ErrorTypeInvalidState,
	Message: "a run is already in progress",
}

// failureKind names the error kind recorded for a rejected batch
func failureKind(err error) string {
	if t, ok := apperrors.TypeOf(err); ok {
		return string(t)
	}
	if re, ok := err.(*RunError); ok {
		return string(re.Type)
	}
	return "UNKNOWN"
}
