package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is an RFC 7807 error body
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// NewProblemDetails creates a problem with an empty extension set
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension member
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]interface{})
	}
	pd.Extensions[key] = value
	return pd
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions into the top-level object
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		data[k] = v
	}
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	return json.Marshal(data)
}

// StatusForType maps an application error type to an HTTP status
func StatusForType(t ErrorType) int {
	switch t {
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeSchema, ErrTypeDuplicateKey, ErrTypeAllMissing, ErrTypeTimestamp, ErrTypeParsing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ProblemTypeFor maps an application error type to a problem type URI
func ProblemTypeFor(t ErrorType) string {
	switch t {
	case ErrTypeValidation:
		return TypeValidation
	case ErrTypeNotFound:
		return TypeNotFound
	case ErrTypeSchema, ErrTypeDuplicateKey, ErrTypeAllMissing, ErrTypeTimestamp, ErrTypeParsing:
		return TypeBatchRejected
	case ErrTypeStorage:
		return TypeStorage
	case ErrTypeConfig:
		return TypeConfig
	default:
		return TypeInternal
	}
}
