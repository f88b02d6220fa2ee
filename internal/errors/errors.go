package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode classifies an application error.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"
	ErrCodeCancelled    ErrorCode = "CANCELLED"

	// Database
	ErrCodeDBConnection  ErrorCode = "DB_CONNECTION_ERROR"
	ErrCodeDBQuery       ErrorCode = "DB_QUERY_ERROR"
	ErrCodeDBTransaction ErrorCode = "DB_TRANSACTION_ERROR"

	// Venue ingestion
	ErrCodeVenueAPI    ErrorCode = "VENUE_API_ERROR"
	ErrCodeEmptyResult ErrorCode = "EMPTY_RESULT"
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
)

// AppError is the application error carried across layers.
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status for the query surface.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new application error.
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// WrapError wraps a standard error into an AppError.
func WrapError(err error, code ErrorCode, message string) *AppError {
	appErr := NewAppError(code, message, err)
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// IsAppError reports whether err is (or wraps) an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts the AppError from err, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
