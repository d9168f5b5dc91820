// Package errors provides the closed error taxonomy crossing the trust
// boundary to the client. Anything that fails inside the relay is mapped to
// one of these kinds before it becomes a response body or stream event.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for client-facing errors.
const (
	ErrCodeQuotaExceeded  = "QUOTA_EXCEEDED"
	ErrCodeBackend        = "BACKEND_ERROR"
	ErrCodeStream         = "STREAM_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNoUserMessage  = "NO_USER_MESSAGE"
	ErrCodeEmptyMessage   = "EMPTY_MESSAGE"
	ErrCodeNoResponseBody = "NO_RESPONSE_BODY"

	ErrCodeSessionInvalid   = "SESSION_INVALID"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// DomainError carries a public-safe message and an HTTP status. The wrapped
// error is for server-side logs only and is never serialized.
type DomainError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewQuotaExceededError creates the error for an exhausted backend quota.
func NewQuotaExceededError() *DomainError {
	return &DomainError{
		Code:       ErrCodeQuotaExceeded,
		Message:    "usage quota exceeded",
		HTTPStatus: http.StatusForbidden,
	}
}

// NewBackendError creates a generic backend failure with the given status.
func NewBackendError(status int, err error) *DomainError {
	if status < http.StatusInternalServerError {
		status = http.StatusInternalServerError
	}
	return &DomainError{
		Code:       ErrCodeBackend,
		Message:    "backend request failed",
		HTTPStatus: status,
		Err:        err,
	}
}

// NewStreamError creates the error for a failure while reading or decoding
// the backend stream.
func NewStreamError(err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeStream,
		Message:    "response stream interrupted",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewValidationError creates a validation error. The message may be passed
// through from the backend when it supplied one.
func NewValidationError(message string, details string) *DomainError {
	if message == "" {
		message = "invalid request"
	}
	return &DomainError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNoUserMessageError creates the error for a request without a message.
func NewNoUserMessageError() *DomainError {
	return &DomainError{
		Code:       ErrCodeNoUserMessage,
		Message:    "no user message provided",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewEmptyMessageError creates the error for a blank message.
func NewEmptyMessageError() *DomainError {
	return &DomainError{
		Code:       ErrCodeEmptyMessage,
		Message:    "message is empty",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNoResponseBodyError creates the error for a missing response body where
// a stream was expected.
func NewNoResponseBodyError() *DomainError {
	return &DomainError{
		Code:       ErrCodeNoResponseBody,
		Message:    "backend returned no response body",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewSessionInvalidError creates the 401 returned to API callers whose
// session could not be established.
func NewSessionInvalidError(reason string) *DomainError {
	return &DomainError{
		Code:       ErrCodeSessionInvalid,
		Message:    "session is invalid or expired",
		Details:    reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewRateLimitedError creates the 429 returned when a caller exceeds the
// request budget.
func NewRateLimitedError() *DomainError {
	return &DomainError{
		Code:       ErrCodeRateLimited,
		Message:    "too many requests",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// NewInternalError creates a generic internal error.
func NewInternalError(message string, err error) *DomainError {
	if message == "" {
		message = "internal server error"
	}
	return &DomainError{
		Code:       ErrCodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsDomainError checks if the error is a domain error.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error chain.
func GetDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}
