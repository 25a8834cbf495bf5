// Package response writes the catalog's JSON envelope:
//
//	{"status": 200, "message": "...", "data": ..., "errors": ...}
package response

import (
	"encoding/json"
	"net/http"

	"github.com/jmgilman/go/errors"
)

type envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusCreated, envelope{Status: http.StatusCreated, Data: data})
}

// NoContent sends a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, envelope{Status: status, Message: message})
}

// ValidationError sends a 422 with field-level error map.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	write(w, http.StatusUnprocessableEntity, envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Conflict sends a 409 carrying the authoritative record the caller must
// reconcile with before retrying.
func Conflict(w http.ResponseWriter, message string, current interface{}) {
	write(w, http.StatusConflict, envelope{
		Status:  http.StatusConflict,
		Message: message,
		Data:    map[string]interface{}{"current": current},
	})
}

// Err maps a classified error to its HTTP status and writes it. Internal
// failures are reported without their message.
func Err(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		write(w, status, envelope{Status: status, Message: http.StatusText(status)})
		return
	}

	body := errors.ToJSON(err)
	write(w, status, envelope{Status: status, Message: body.Message, Errors: body})
}

// StatusOf returns the HTTP status for err's error code.
func StatusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeAlreadyExists, errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeInvalidInput, errors.CodeSchemaFailed:
		return http.StatusUnprocessableEntity
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeForbidden:
		return http.StatusForbidden
	case errors.CodeRateLimit:
		return http.StatusTooManyRequests
	case errors.CodeUnavailable, errors.CodeTimeout, errors.CodeDatabase, errors.CodeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized sends a 401.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}

// Forbidden sends a 403.
func Forbidden(w http.ResponseWriter) {
	Error(w, http.StatusForbidden, "Forbidden")
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found")
}
