package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different classes of errors that can occur
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeUnsupported    ErrorType = "platform_unsupported"
	ErrorTypeSessionMissing ErrorType = "session_missing"
	ErrorTypePoolExhausted  ErrorType = "pool_exhausted"
	ErrorTypePersistence    ErrorType = "persistence"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error represents a typed error with optional status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Newf creates a typed error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown if it is not typed
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeValidation:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// Sentinel errors shared across packages
var (
	// ErrPoolExhausted is returned by checkout when no eligible account
	// exists for the requested platform.
	ErrPoolExhausted = New(ErrorTypePoolExhausted, "no eligible account available")

	// ErrSessionMissing is returned when a root was flagged strict_sessions
	// and no stored session could be resolved for its platform.
	ErrSessionMissing = New(ErrorTypeSessionMissing, "no session configured for platform")
)

// BatchValidationError aborts a whole batch before any work starts
type BatchValidationError struct {
	Reasons []string
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("batch validation failed: %v", e.Reasons)
}

// IsBatchValidation reports whether err is a batch validation failure
func IsBatchValidation(err error) bool {
	var bv *BatchValidationError
	return stderrors.As(err, &bv)
}
