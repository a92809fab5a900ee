package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// Backend-related error codes.
	ErrCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	ErrCodeBackendError       = "BACKEND_ERROR"

	// Operation-related error codes.
	ErrCodeNoActiveOperation = "NO_ACTIVE_OPERATION"
	ErrCodeNoSession         = "NO_SESSION"
	ErrCodeExportRefused     = "EXPORT_REFUSED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AppError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type AppError struct {
	Code    string
	Message string
	Err     error // wrapped original error
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

// NewAppError creates a new AppError.
func NewAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *AppError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
