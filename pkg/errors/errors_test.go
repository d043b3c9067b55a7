package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := ServerError("search unavailable", 503)
	assert.Equal(t, "server_error error (code 503): search unavailable", err.Error())
}

func TestInvalidArgument(t *testing.T) {
	err := InvalidArgument("num_seg must be at least 1, got %d", 0)
	assert.Equal(t, ErrorTypeInvalidArgument, err.Type)
	assert.Contains(t, err.Message, "got 0")

	assert.True(t, IsInvalidArgument(err))
	assert.False(t, IsInvalidArgument(errors.New("plain")))
	assert.False(t, IsInvalidArgument(RateLimitError("slow down")))
}

func TestConstructorsWrapCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	err := NetworkError("request failed", cause)
	assert.Equal(t, ErrorTypeNetwork, err.Type)
	assert.Contains(t, err.Message, "connection refused")

	err = ParsingError("invalid response body", cause)
	assert.Equal(t, ErrorTypeParsing, err.Type)
	assert.Contains(t, err.Message, "connection refused")

	// nil cause keeps the message as given
	err = NetworkError("request failed", nil)
	assert.Equal(t, "request failed", err.Message)
}

func TestConstructorCodes(t *testing.T) {
	assert.Equal(t, 429, RateLimitError("x").Code)
	assert.Equal(t, 401, AuthenticationError("x").Code)
	assert.Equal(t, 404, NotFoundError("x").Code)
	assert.Equal(t, 502, ServerError("x", 502).Code)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		retryable bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeInvalidArgument, false},
		{ErrorTypeAuth, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeParsing, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.errorType))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	retryable := []int{0, 429, 500, 502, 503, 504, 599}
	for _, code := range retryable {
		assert.True(t, IsRetryableStatusCode(code), "status %d", code)
	}

	notRetryable := []int{200, 400, 401, 403, 404}
	for _, code := range notRetryable {
		assert.False(t, IsRetryableStatusCode(code), "status %d", code)
	}
}
