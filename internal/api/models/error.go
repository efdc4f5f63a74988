package models

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Error is a short machine-readable code, e.g. "unauthorized".
	Error string `json:"error,omitempty"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// TraceID is the request identifier for correlating logs.
	TraceID string `json:"traceId"`

	// Errors contains structured field validation errors.
	Errors []FieldError `json:"errors,omitempty"`

	// Status is the HTTP status code; it is not serialized.
	Status int `json:"-"`

	// Extra fields are merged into the top-level body.
	Extra map[string]any `json:"-"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error codes.
const (
	ErrorCodeBadRequest      = "bad_request"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeForbidden       = "forbidden"
	ErrorCodeNotFound        = "not_found"
	ErrorCodeConflict        = "conflict"
	ErrorCodeTooManyRequests = "too_many_requests"
	ErrorCodeInternal        = "internal_error"
	ErrorCodeUnavailable     = "service_unavailable"
)

// NewError creates an ErrorResponse.
func NewError(status int, code, traceID, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   code,
		Message: message,
		TraceID: traceID,
		Status:  status,
	}
}

// WithErrors adds field errors.
func (e *ErrorResponse) WithErrors(errors []FieldError) *ErrorResponse {
	e.Errors = errors
	return e
}

// With adds a top-level field to the body.
func (e *ErrorResponse) With(key string, value any) *ErrorResponse {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

// MarshalJSON merges Extra into the envelope. Envelope fields win on
// key collisions.
func (e *ErrorResponse) MarshalJSON() ([]byte, error) {
	type envelope ErrorResponse
	base, err := json.Marshal((*envelope)(e))
	if err != nil || len(e.Extra) == 0 {
		return base, err
	}

	merged := make(map[string]json.RawMessage, len(e.Extra)+4)
	for k, v := range e.Extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Write writes the error as JSON to the ResponseWriter.
func (e *ErrorResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if e.TraceID != "" {
		w.Header().Set("X-Request-Id", e.TraceID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}

// NewBadRequest creates a 400 Bad Request error.
func NewBadRequest(traceID, message string, errors []FieldError) *ErrorResponse {
	return NewError(http.StatusBadRequest, ErrorCodeBadRequest, traceID, message).WithErrors(errors)
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(traceID, message string) *ErrorResponse {
	return NewError(http.StatusUnauthorized, ErrorCodeUnauthorized, traceID, message)
}

// NewForbidden creates a 403 Forbidden error.
func NewForbidden(traceID, message string) *ErrorResponse {
	return NewError(http.StatusForbidden, ErrorCodeForbidden, traceID, message)
}

// NewNotFound creates a 404 Not Found error.
func NewNotFound(traceID, message string) *ErrorResponse {
	return NewError(http.StatusNotFound, ErrorCodeNotFound, traceID, message)
}

// NewConflict creates a 409 Conflict error.
func NewConflict(traceID, message string) *ErrorResponse {
	return NewError(http.StatusConflict, ErrorCodeConflict, traceID, message)
}

// NewTooManyRequests creates a 429 Too Many Requests error.
func NewTooManyRequests(traceID, message string) *ErrorResponse {
	return NewError(http.StatusTooManyRequests, ErrorCodeTooManyRequests, traceID, message)
}

// NewInternalError creates a 500 Internal Server Error.
func NewInternalError(traceID, message string) *ErrorResponse {
	return NewError(http.StatusInternalServerError, ErrorCodeInternal, traceID, message)
}

// NewServiceUnavailable creates a 503 Service Unavailable error.
func NewServiceUnavailable(traceID, message string) *ErrorResponse {
	return NewError(http.StatusServiceUnavailable, ErrorCodeUnavailable, traceID, message)
}
