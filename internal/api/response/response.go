// Package response writes JSON bodies and error envelopes for handlers.
// Every response carries the request id in X-Request-Id.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/models"
)

// JSON writes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone; all that is left is to note it.
		middleware.LoggerFrom(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, data)
}

// Created writes a 201 response, with a Location header when location is set.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// NewError starts an envelope for r so callers can attach extra top-level
// fields, e.g. the empty arrays the web client expects on a 429.
func NewError(r *http.Request, status int, code, message string) *models.ErrorResponse {
	return models.NewError(status, code, middleware.GetRequestID(r.Context()), message)
}

// Error writes an envelope built by NewError or the models constructors.
func Error(w http.ResponseWriter, _ *http.Request, e *models.ErrorResponse) {
	e.Write(w)
}

// BadRequest writes a 400, optionally listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, message string, fields []models.FieldError) {
	Error(w, r, NewError(r, http.StatusBadRequest, models.ErrorCodeBadRequest, message).WithErrors(fields))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusUnauthorized, models.ErrorCodeUnauthorized, message))
}

// Forbidden writes a 403.
func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusForbidden, models.ErrorCodeForbidden, message))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusNotFound, models.ErrorCodeNotFound, message))
}

// Conflict writes a 409.
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusConflict, models.ErrorCodeConflict, message))
}

// TooManyRequests writes a 429.
func TooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusTooManyRequests, models.ErrorCodeTooManyRequests, message))
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusInternalServerError, models.ErrorCodeInternal, message))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, NewError(r, http.StatusServiceUnavailable, models.ErrorCodeUnavailable, message))
}
