// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError means a missing, invalid or expired credential.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "unauthorized: " + e.Reason
}

// ConflictError is an illegal state transition, e.g. starting while running.
type ConflictError struct {
	Op     string
	Status string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s while campaign is %s", e.Op, e.Status)
}

// ValidationError is a malformed request or unparseable field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UpstreamError is a failed call to the external worker. It is logged and
// never returned to HTTP callers.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// InternalError hides its cause from clients.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "internal error: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// Helper constructors
func NewAuth(reason string) error {
	return &AuthError{Reason: reason}
}

func NewConflict(op, status string) error {
	return &ConflictError{Op: op, Status: status}
}

func NewValidation(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func NewValidationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

func NewUpstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func isTooLarge(err error) bool {
	var e *http.MaxBytesError
	return errors.As(err, &e)
}

// StatusCode maps err onto the HTTP status sent to the client.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsAuth(err):
		return http.StatusUnauthorized
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case IsConflict(err), IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text that may be shown to the client for err.
func PublicMessage(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
