package apperrors

import (
	"errors"
	"net/http"
	"strings"
)

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

// Error returns the user-facing message only. The origin stays reachable
// through Unwrap for logging; it never leaks into responses.
func (appErr *AppError) Error() string {
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	ErrValidation      = "VALIDATION"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrForbidden       = "FORBIDDEN" // Signed in but not the owner
	ErrNotFound        = "NOT_FOUND"
	ErrPersistence     = "PERSISTENCE"
	ErrConfiguration   = "CONFIGURATION"
)

// ValidationError carries per-field messages back to the form. It is
// recovered locally at the handler boundary, never thrown past it.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewAuthenticationError(reason string) *AppError {
	return NewAppError(ErrUnauthenticated, reason, nil)
}

func NewAuthorizationError(reason string) *AppError {
	return NewAppError(ErrForbidden, reason, nil)
}

func NewNotFoundError(what string) *AppError {
	return NewAppError(ErrNotFound, what+" not found", nil)
}

func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrConfiguration, message, nil)
}

// NewPersistenceError wraps a store failure. Network-class failures get a
// generic user-facing message so transient outages are not surfaced as raw
// driver errors.
func NewPersistenceError(baseMessage string, originalErr error) *AppError {
	message := baseMessage
	if originalErr != nil {
		if isNetworkError(originalErr) {
			message = baseMessage + ". Our data service is temporarily unreachable. Please try again soon."
		} else {
			message = baseMessage + ": " + originalErr.Error()
		}
	}
	return NewAppError(ErrPersistence, message, originalErr)
}

func isNetworkError(err error) bool {
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network error",
		"i/o timeout",
		"failed to connect",
		"broken pipe",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatus converts an error to the HTTP status the handler should write.
func HTTPStatus(err error) int {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
