// Package llm implements the multi-backend generation dispatcher: a
// registry of independently rate-limited text-generation backends, a
// per-backend health tracker, ordered candidate selection, retry and
// failover logic, structural response validation, and a guaranteed
// fallback path that grounds answers in retrieved context when every
// backend is unavailable.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the dispatcher and backend transports.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the backend's API returned an empty or nil response body.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the backend's response contained no valid choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrNoUsableBackends indicates that no backend with a usable credential
	// was configured at startup. This is the only error that aborts
	// initialization.
	ErrNoUsableBackends = errors.New("no usable generation backends configured")
)

// ErrorType represents the category of a failure observed while calling a
// generation backend. The discriminant is set at the call site where the
// real status code or SDK error is known, never inferred from message text.
type ErrorType int

const (
	// ErrorTypeUnknown indicates a failure of an undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication indicates a problem with authentication or
	// authorization (e.g., invalid API key).
	ErrorTypeAuthentication
	// ErrorTypeRateLimit indicates that the backend signaled an explicit
	// rate limit. It triggers immediate failover, never an in-place retry.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest indicates a malformed request or invalid parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates that a requested resource (e.g., a model)
	// could not be found.
	ErrorTypeNotFound
	// ErrorTypeServer indicates a problem on the backend's end.
	ErrorTypeServer
	// ErrorTypeNetwork indicates a transport-level failure reaching the backend.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates that the per-call timeout elapsed.
	ErrorTypeTimeout
	// ErrorTypeParse indicates that no structured payload could be located
	// in an otherwise successful response.
	ErrorTypeParse
	// ErrorTypeSchema indicates that a located payload failed structural
	// validation.
	ErrorTypeSchema
)

// BackendError is a structured failure from one backend attempt. It
// normalizes SDK- and wire-specific errors into a common shape carrying
// the backend ID, a classified type, and the original error for chaining.
type BackendError struct {
	// Type classifies the failure into a standard category.
	Type ErrorType
	// Backend identifies the backend that produced the failure.
	Backend string
	// StatusCode holds the HTTP status code from the backend's response,
	// if applicable.
	StatusCode int
	// Message contains the user-facing failure message.
	Message string
	// WrappedError holds the original underlying error.
	WrappedError error
}

// Error returns a string representation of the BackendError, satisfying
// the standard error interface.
func (e *BackendError) Error() string {
	base := fmt.Sprintf("%s error", e.Backend)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if typeStr := e.typeString(); typeStr != "" {
		base += fmt.Sprintf(" [%s]", typeStr)
	}

	if e.Message != "" {
		base += ": " + e.Message
	}

	if e.WrappedError != nil {
		base += fmt.Sprintf(": %v", e.WrappedError)
	}

	return base
}

// Unwrap returns the underlying wrapped error, allowing for error
// inspection with errors.Is and errors.As.
func (e *BackendError) Unwrap() error { return e.WrappedError }

// IsRateLimit reports whether the failure was an explicit rate-limit
// signal from the backend.
func (e *BackendError) IsRateLimit() bool { return e.Type == ErrorTypeRateLimit }

// Retryable reports whether retrying the same backend could plausibly
// succeed. Rate limits are excluded because the dispatcher fails over
// immediately instead of waiting out the window in place; authentication
// and bad-request failures are excluded because they are deterministic.
func (e *BackendError) Retryable() bool {
	switch e.Type {
	case ErrorTypeServer, ErrorTypeNetwork, ErrorTypeTimeout,
		ErrorTypeParse, ErrorTypeSchema, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}

// typeString returns a human-readable error type.
func (e *BackendError) typeString() string {
	switch e.Type {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServer:
		return "server_error"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeParse:
		return "parse"
	case ErrorTypeSchema:
		return "schema"
	default:
		return ""
	}
}

// NewBackendError creates a new BackendError. This constructor is used to
// build standardized errors from backend-specific responses.
func NewBackendError(backend string, errType ErrorType, statusCode int, message string, wrapped error) *BackendError {
	return &BackendError{
		Type:         errType,
		Backend:      backend,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier standardizes backend-specific errors into BackendError
// instances. It uses context such as HTTP status codes to determine the
// appropriate ErrorType.
type ErrorClassifier struct {
	// Backend is the ID of the backend for which this classifier works.
	Backend string
}

// ClassifyHTTPError creates a BackendError by classifying an error based
// on its HTTP status code.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *BackendError {
	var errType ErrorType
	var userMessage string

	switch statusCode {
	case 401, 403:
		errType = ErrorTypeAuthentication
		userMessage = fmt.Sprintf("%s authentication failed", ec.Backend)
	case 429:
		errType = ErrorTypeRateLimit
		userMessage = fmt.Sprintf("%s rate limit exceeded", ec.Backend)
	case 400:
		errType = ErrorTypeBadRequest
		userMessage = message
	case 404:
		errType = ErrorTypeNotFound
		userMessage = message
	case 408:
		errType = ErrorTypeTimeout
		userMessage = message
	case 500, 502, 503, 504:
		errType = ErrorTypeServer
		userMessage = message
	default:
		if statusCode >= 400 && statusCode < 500 {
			errType = ErrorTypeBadRequest
		} else if statusCode >= 500 {
			errType = ErrorTypeServer
		} else {
			errType = ErrorTypeUnknown
		}
		userMessage = message
	}

	return NewBackendError(ec.Backend, errType, statusCode, userMessage, err)
}

// ClassifyContextError creates a BackendError by classifying a
// context-related error. A deadline hit inside a backend call is a
// per-call timeout; cancellation is classified as a network-class abort
// and the dispatcher stops the whole operation on it.
func (ec *ErrorClassifier) ClassifyContextError(err error) *BackendError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewBackendError(ec.Backend, ErrorTypeTimeout, 0, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewBackendError(ec.Backend, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewBackendError(ec.Backend, ErrorTypeUnknown, 0, "", err)
	}
}
