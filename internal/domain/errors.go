package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures reported by the gateways.
type ErrorCode string

const (
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeProviderUnavailable   ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeTransport             ErrorCode = "TRANSPORT"
	ErrCodeMalformed             ErrorCode = "MALFORMED"
	ErrCodeHTTP                  ErrorCode = "HTTP_ERROR"
	ErrCodeNoData                ErrorCode = "NO_DATA"
	ErrCodeConversionUnavailable ErrorCode = "CONVERSION_UNAVAILABLE"
)

// APIError is the uniform error value returned across the gateway boundary.
type APIError struct {
	Err     error     `json:"-"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
}

// NewAPIError creates an APIError with no HTTP status.
func NewAPIError(code ErrorCode, format string, args ...interface{}) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is an APIError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// AsAPIError converts any error into an APIError, classifying unknown errors as transport failures.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Code: ErrCodeTransport, Message: err.Error(), Err: err}
}
