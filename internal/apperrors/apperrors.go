package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across layers.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfig        = errors.New("provider not configured")
	ErrProvider      = errors.New("identity provider failure")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrInternal      = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
// Domain-level failures are rendered as success:false payloads at the HTTP
// boundary; only ConfigError and Internal carry a non-200 status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ConfigError indicates missing identity provider credentials. This is the
// only failure the auth endpoints report with a non-200 status.
func ConfigError(message string) *AppError {
	return &AppError{
		Code:    "CONFIG_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     ErrConfig,
	}
}

// CodeMissing indicates the request carried no authorization code.
func CodeMissing() *AppError {
	return &AppError{
		Code:    "CODE_MISSING",
		Message: "Authorization code missing",
		Status:  http.StatusOK,
		Err:     ErrInvalidInput,
	}
}

// ProviderError indicates a failed external call during code exchange: no
// usable access token or no email in the fetched profile.
func ProviderError(message string) *AppError {
	return &AppError{
		Code:    "PROVIDER_ERROR",
		Message: message,
		Status:  http.StatusOK,
		Err:     ErrProvider,
	}
}

// InvalidInput indicates a request payload that failed domain validation.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusOK,
		Err:     ErrInvalidInput,
	}
}

// ConstraintViolation indicates a duplicate username or email on account
// creation. Surfaced, never silently retried.
func ConstraintViolation(resource, field, value string) *AppError {
	return &AppError{
		Code:    "CONSTRAINT_VIOLATION",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusOK,
		Err:     ErrAlreadyExists,
	}
}

// InvalidToken indicates a refresh token that failed verification: bad
// signature, unknown persisted record, or a user-id mismatch between the
// signed claims and the stored row.
func InvalidToken() *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: "Invalid refresh token",
		Status:  http.StatusOK,
		Err:     ErrInvalidToken,
	}
}

// Expired indicates a refresh token whose persisted expiry has passed. The
// stale row is deleted before this is returned.
func Expired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "Refresh token expired",
		Status:  http.StatusOK,
		Err:     ErrTokenExpired,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal wraps an unexpected persistence or logic failure. The cause is
// logged server-side and never rendered to the caller.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
