// Package domain defines the error taxonomy shared by the session manager,
// the assistant client and the controller.
package domain

import (
	"errors"
	"net/http"
)

// HTTPError is an error that knows which HTTP status it maps to.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinels for errors.Is checks.
var (
	ErrInitialization = errors.New("not initialized")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrConfiguration  = errors.New("configuration error")
	ErrBackend        = errors.New("backend error")
	ErrValidation     = errors.New("validation failed")
)

type (
	// InitializationError means the remote clients are not ready yet.
	InitializationError struct {
		Message string
	}

	// NotSignedInError means a storage operation ran without a valid token.
	NotSignedInError struct {
		Message string
	}

	// ConfigurationError means static configuration (e.g. a folder URL) is unusable.
	ConfigurationError struct {
		Message string
	}

	// BackendError wraps a transport or remote service failure.
	BackendError struct {
		Message string
		Err     error
	}

	// ValidationError means a user-supplied field is missing or malformed.
	ValidationError struct {
		Message string
	}
)

func (e *InitializationError) Error() string { return e.Message }
func (e *NotSignedInError) Error() string    { return e.Message }
func (e *ConfigurationError) Error() string  { return e.Message }
func (e *ValidationError) Error() string     { return e.Message }

func (e *BackendError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *InitializationError) StatusCode() int { return http.StatusServiceUnavailable }
func (e *NotSignedInError) StatusCode() int    { return http.StatusUnauthorized }
func (e *ConfigurationError) StatusCode() int  { return http.StatusInternalServerError }
func (e *BackendError) StatusCode() int        { return http.StatusBadGateway }
func (e *ValidationError) StatusCode() int     { return http.StatusBadRequest }

func (e *InitializationError) Is(target error) bool { return target == ErrInitialization }
func (e *NotSignedInError) Is(target error) bool    { return target == ErrNotSignedIn }
func (e *ConfigurationError) Is(target error) bool  { return target == ErrConfiguration }
func (e *BackendError) Is(target error) bool        { return target == ErrBackend }
func (e *ValidationError) Is(target error) bool     { return target == ErrValidation }

// StatusCode returns the HTTP status for err, defaulting to 500.
func StatusCode(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
