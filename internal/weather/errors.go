package weather

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode categorizes engine errors and response warnings.
type ErrorCode string

const (
	ErrCodeValidationLatitude  ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationLongitude ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationDate      ErrorCode = "validation_invalid_date"
	ErrCodeValidationThreshold ErrorCode = "validation_threshold_out_of_range"
	ErrCodeValidationRequest   ErrorCode = "validation_malformed_request"
	ErrCodeLocationUnresolved  ErrorCode = "location_unresolved"
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrCodeInsufficientData    ErrorCode = "insufficient_data"
	ErrCodeSyntheticFallback   ErrorCode = "synthetic_fallback"
	ErrCodeTimeout             ErrorCode = "timeout"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalEncoding    ErrorCode = "internal_serialization_error"
)

// HTTPStatus maps an ErrorCode to an HTTP status.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeLocationUnresolved:
		return http.StatusUnprocessableEntity
	case c == ErrCodeProviderUnavailable:
		return http.StatusBadGateway
	case c == ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type returned across package boundaries.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status for this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates an AppError.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return strings.HasPrefix(string(appErr.Code), "validation_")
}

// MalformedRecordError describes a provider record the normalizer dropped.
type MalformedRecordError struct {
	Source string
	Date   string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record from %s on %q: %s: %s", e.Source, e.Date, e.Field, e.Reason)
}
