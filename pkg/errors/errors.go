// Package errors defines the error taxonomy shared by the support pipeline and its transports.
// Collaborator failures are mapped to these types so callers can branch on Type instead of strings.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// SupportError is a classified failure raised by a pipeline collaborator or the transport layer.
type SupportError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Op        string `json:"op,omitempty"`
	Retryable bool   `json:"-"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *SupportError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s (op=%s)", msg, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SupportError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status that best represents the error.
func (e *SupportError) HTTPStatusCode() int {
	switch e.Type {
	case TypeInvalidInput, TypeMalformedOracleOutput:
		return http.StatusBadRequest
	case TypeUnknownSession:
		return http.StatusNotFound
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeOracleUnavailable, TypeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error types.
const (
	TypeOracleUnavailable     = "oracle_unavailable"
	TypeMalformedOracleOutput = "malformed_oracle_output"
	TypeUnknownSession        = "unknown_session"
	TypeInvalidInput          = "invalid_input"
	TypeRateLimited           = "rate_limited"
	TypeStoreUnavailable      = "store_unavailable"
	TypeInternalError         = "internal_error"
)

// NewOracleUnavailableError reports that the language oracle could not be reached in time.
func NewOracleUnavailableError(op string, err error) *SupportError {
	return &SupportError{
		Type:      TypeOracleUnavailable,
		Message:   "language oracle unavailable",
		Op:        op,
		Retryable: true,
		Err:       err,
	}
}

// NewMalformedOracleOutputError reports oracle output that could not be parsed.
func NewMalformedOracleOutputError(op, message string) *SupportError {
	return &SupportError{
		Type:    TypeMalformedOracleOutput,
		Message: message,
		Op:      op,
	}
}

// NewUnknownSessionError reports a lookup of a session id that does not exist.
func NewUnknownSessionError(sessionID string) *SupportError {
	return &SupportError{
		Type:    TypeUnknownSession,
		Message: fmt.Sprintf("session %q not found", sessionID),
	}
}

// NewInvalidInputError reports a request rejected by validation.
func NewInvalidInputError(message string) *SupportError {
	return &SupportError{
		Type:    TypeInvalidInput,
		Message: message,
	}
}

// NewRateLimitedError reports a request rejected by the rate limiter.
func NewRateLimitedError(message string) *SupportError {
	return &SupportError{
		Type:      TypeRateLimited,
		Message:   message,
		Retryable: true,
	}
}

// NewStoreUnavailableError reports a session store failure.
func NewStoreUnavailableError(op string, err error) *SupportError {
	return &SupportError{
		Type:      TypeStoreUnavailable,
		Message:   "session store unavailable",
		Op:        op,
		Retryable: true,
		Err:       err,
	}
}

// NewInternalError reports an unexpected failure.
func NewInternalError(op string, err error) *SupportError {
	return &SupportError{
		Type:    TypeInternalError,
		Message: "internal error",
		Op:      op,
		Err:     err,
	}
}

// IsType reports whether any error in err's chain is a SupportError of the given type.
func IsType(err error, typ string) bool {
	var se *SupportError
	if stderrors.As(err, &se) {
		return se.Type == typ
	}
	return false
}

// IsRetryable reports whether err is a SupportError marked retryable.
func IsRetryable(err error) bool {
	var se *SupportError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// StatusCode maps any error to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var se *SupportError
	if stderrors.As(err, &se) {
		return se.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
