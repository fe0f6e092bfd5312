package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"

	// Domain failure kinds. Each is recovered per player or per beatmap set.
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeUnavailable    ErrorType = "unavailable"
	ErrorTypeDownloadFailed ErrorType = "download_failed"
	ErrorTypeStoreIO        ErrorType = "store_io"
)

// Error represents a typed failure with optional HTTP status and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
	// RetryAfter is the delay the server asked for, if any
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// Wrap creates a typed error around cause
func Wrap(t ErrorType, cause error, message string) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

func NotFound(message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Code: 404, Message: message}
}

func Unavailable(cause error, message string) *Error {
	return &Error{Type: ErrorTypeUnavailable, Message: message, Err: cause}
}

func DownloadFailed(code int, cause error, message string) *Error {
	return &Error{Type: ErrorTypeDownloadFailed, Code: code, Message: message, Err: cause}
}

func StoreIO(cause error, message string) *Error {
	return &Error{Type: ErrorTypeStoreIO, Message: message, Err: cause}
}

// TypeOf returns the ErrorType of the first *Error in err's chain,
// or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsKind reports whether err's chain contains an *Error of type t
func IsKind(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeStoreIO:
		return false
	default:
		return false
	}
}

// IsRetryableError checks the type of err's chain
func IsRetryableError(err error) bool {
	return IsRetryable(TypeOf(err))
}

// TypeForStatus maps an HTTP status to an ErrorType
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// StatusCode returns the HTTP status of the first *Error in err's chain
// that carries one, or 0.
func StatusCode(err error) int {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return 0
		}
		if e.Code != 0 {
			return e.Code
		}
		err = e.Err
	}
	return 0
}

// RetryAfterOf returns the first server-requested delay in err's chain, or 0
func RetryAfterOf(err error) time.Duration {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return 0
		}
		if e.RetryAfter > 0 {
			return e.RetryAfter
		}
		err = e.Err
	}
	return 0
}
