// Package errors defines the typed errors used across conduit.
//
// Lower layers return structured failures rather than bare error strings so
// that callers can choose the right user-facing remedy: reopen settings for
// configuration errors, prompt re-login for unauthorized, show the probed
// path for not-found, and so on.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error types
const (
	// ErrConfiguration is returned when required settings are missing or
	// invalid. The user must fix their configuration before retrying.
	ErrConfiguration = "configuration"

	// ErrSecurity is returned on OAuth state mismatch. The flow must abort
	// without a token exchange.
	ErrSecurity = "security"

	// ErrProvider is returned when the remote OAuth or API service reports
	// an error of its own.
	ErrProvider = "provider"

	// ErrUnauthorized is returned when a token is expired or invalid and a
	// refresh did not recover it. Callers must prompt re-login.
	ErrUnauthorized = "unauthorized"

	// ErrTransport is returned on network or process-spawn failures.
	ErrTransport = "transport"

	// ErrTimeout is returned when a probe exceeded its budget and was
	// killed.
	ErrTimeout = "timeout"

	// ErrNotFound is returned when an expected config file or credential
	// entry is absent. The message names the exact path probed.
	ErrNotFound = "not_found"

	// ErrCancelled is returned when the user cancelled an operation.
	ErrCancelled = "cancelled"
)

// Error represents a typed error in the application.
type Error struct {
	// Type is one of the Err* constants.
	Type string

	// Message is the human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new typed error.
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string, cause error) *Error {
	return NewError(ErrConfiguration, message, cause)
}

// NewSecurityError creates a security error.
func NewSecurityError(message string, cause error) *Error {
	return NewError(ErrSecurity, message, cause)
}

// NewProviderError creates a provider error.
func NewProviderError(message string, cause error) *Error {
	return NewError(ErrProvider, message, cause)
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string, cause error) *Error {
	return NewError(ErrUnauthorized, message, cause)
}

// NewTransportError creates a transport error.
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string, cause error) *Error {
	return NewError(ErrTimeout, message, cause)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(message string, cause error) *Error {
	return NewError(ErrCancelled, message, cause)
}

// isType reports whether err (or anything it wraps) is a typed error of
// the given type.
func isType(err error, errorType string) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsConfiguration checks if the error is a configuration error.
func IsConfiguration(err error) bool { return isType(err, ErrConfiguration) }

// IsSecurity checks if the error is a security error.
func IsSecurity(err error) bool { return isType(err, ErrSecurity) }

// IsProvider checks if the error is a provider error.
func IsProvider(err error) bool { return isType(err, ErrProvider) }

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool { return isType(err, ErrUnauthorized) }

// IsTransport checks if the error is a transport error.
func IsTransport(err error) bool { return isType(err, ErrTransport) }

// IsTimeout checks if the error is a timeout error.
func IsTimeout(err error) bool { return isType(err, ErrTimeout) }

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool { return isType(err, ErrNotFound) }

// IsCancelled checks if the error is a cancelled error.
func IsCancelled(err error) bool { return isType(err, ErrCancelled) }
