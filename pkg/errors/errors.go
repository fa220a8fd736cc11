package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. Codes are part of the public HTTP contract.
var (
	ErrUnauthenticated     = New("Unauthenticated", http.StatusUnauthorized, "authentication required")
	ErrInsufficientRole    = New("InsufficientRole", http.StatusUnauthorized, "insufficient role for this resource")
	ErrInvalidCredential   = New("InvalidCredential", http.StatusUnauthorized, "invalid credential")
	ErrExpiredCredential   = New("ExpiredCredential", http.StatusUnauthorized, "credential expired")
	ErrProviderUnavailable = New("ProviderUnavailable", http.StatusInternalServerError, "identity provider unavailable")
	ErrMalformedRequest    = New("MalformedRequestBody", http.StatusBadRequest, "malformed request body")
	ErrNotFound            = New("ResourceNotFound", http.StatusNotFound, "resource not found")
	ErrForbidden           = New("Forbidden", http.StatusForbidden, "forbidden")
	ErrValidation          = New("ValidationFailed", http.StatusBadRequest, "validation failed")
	ErrConflict            = New("Conflict", http.StatusConflict, "conflict")
	ErrRateLimited         = New("RateLimited", http.StatusTooManyRequests, "too many requests")
	ErrInternal            = New("InternalError", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss           = New("CacheMiss", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsInfrastructure reports whether err is an infrastructure fault the caller may retry,
// as opposed to an authorization or validation outcome.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	appErr := FromError(err)
	return appErr.Code == ErrProviderUnavailable.Code || appErr.Code == ErrInternal.Code
}
