package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypeParsing         ErrorType = "parsing"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// InvalidArgument creates an invalid-argument error. These surface
// immediately and are never retried.
func InvalidArgument(format string, args ...interface{}) *Error {
	return &Error{
		Type:    ErrorTypeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsInvalidArgument reports whether err is an invalid-argument error
func IsInvalidArgument(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.Type == ErrorTypeInvalidArgument
}

// NetworkError creates a network error, optionally wrapping the transport
// failure's message
func NetworkError(message string, err error) *Error {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &Error{Type: ErrorTypeNetwork, Message: message}
}

// RateLimitError creates a rate limit error
func RateLimitError(message string) *Error {
	return &Error{Type: ErrorTypeRateLimit, Message: message, Code: 429}
}

// AuthenticationError creates an authentication error
func AuthenticationError(message string) *Error {
	return &Error{Type: ErrorTypeAuth, Message: message, Code: 401}
}

// NotFoundError creates a not-found error
func NotFoundError(message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: message, Code: 404}
}

// ServerError creates a server error with the given status code
func ServerError(message string, code int) *Error {
	return &Error{Type: ErrorTypeServerError, Message: message, Code: code}
}

// ParsingError creates a parsing error, optionally wrapping the decoder's
// message
func ParsingError(message string, err error) *Error {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &Error{Type: ErrorTypeParsing, Message: message}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeInvalidArgument, ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
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
