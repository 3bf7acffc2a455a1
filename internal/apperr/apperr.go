// Package apperr provides structured error handling with context propagation and HTTP status code mapping.
package apperr

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for metrics and response formatting.
type ErrorType string

const (
	// TypeUnauthorized indicates a missing caller identity (HTTP 401)
	TypeUnauthorized ErrorType = "unauthorized"
	// TypeForbidden indicates insufficient privilege (HTTP 403)
	TypeForbidden ErrorType = "forbidden"
	// TypeNotFound indicates a referenced session/topic is absent or terminated (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeBadRequest indicates malformed input (HTTP 400)
	TypeBadRequest ErrorType = "bad_request"
	// TypeUnavailable indicates a deliberate capacity or availability limit (HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
	// TypeInternal indicates a store or transport failure (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithField attaches a context field for logging.
func (e *Error) WithField(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeBadRequest:
		return http.StatusBadRequest
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized creates a new missing-identity error (HTTP 401).
func Unauthorized(message string) *Error {
	return &Error{
		Type:    TypeUnauthorized,
		Message: message,
		Context: make(map[string]any),
	}
}

// Forbidden creates a new insufficient-privilege error (HTTP 403).
func Forbidden(message string) *Error {
	return &Error{
		Type:    TypeForbidden,
		Message: message,
		Context: make(map[string]any),
	}
}

// NotFound creates a new not-found error (HTTP 404).
func NotFound(message string) *Error {
	return &Error{
		Type:    TypeNotFound,
		Message: message,
		Context: make(map[string]any),
	}
}

// BadRequest creates a new malformed-input error (HTTP 400).
func BadRequest(message string) *Error {
	return &Error{
		Type:    TypeBadRequest,
		Message: message,
		Context: make(map[string]any),
	}
}

// Unavailable creates a new over-capacity error (HTTP 503).
func Unavailable(message string) *Error {
	return &Error{
		Type:    TypeUnavailable,
		Message: message,
		Context: make(map[string]any),
	}
}

// Internal creates a new server-side error (HTTP 500).
func Internal(message string, cause error) *Error {
	return &Error{
		Type:    TypeInternal,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}
