package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error the status API answers with directly. ErrorCode is
// stable and meant for clients; Message is for people.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render sets the response status for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates an APIError without details
func New(statusCode int, errorCode, message string) *APIError {
	return NewWithDetails(statusCode, errorCode, message, nil)
}

// NewWithDetails creates an APIError carrying details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Run and queue conditions of the status API
var (
	ErrNoRunYet      = New(http.StatusNotFound, "NO_RUN", "No run has finished yet")
	ErrRunInProgress = New(http.StatusConflict, "RUN_IN_PROGRESS", "A run is already in progress")
	ErrQueueFull     = New(http.StatusServiceUnavailable, "QUEUE_FULL", "Run queue is full, try again later")
)

// InvalidRequestWithError reports a request body or query that could not be
// decoded
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ValidationError names one invalid request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors groups the field errors of one request
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ErrValidation reports a single invalid field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors reports several invalid fields at once
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		ValidationErrors{Errors: errs})
}

// ErrorResponse wraps an APIError in the envelope used outside problem
// responses
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps err
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Error: err}
}

// Render implements render.Renderer
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
