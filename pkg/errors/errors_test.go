package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	inner := New(ErrorTypeServerError, 503, "mirror down")
	outer := DownloadFailed(503, inner, "set 42")
	wrapped := fmt.Errorf("round: %w", outer)

	assert.True(t, IsKind(wrapped, ErrorTypeDownloadFailed))
	assert.True(t, IsKind(wrapped, ErrorTypeServerError))
	assert.False(t, IsKind(wrapped, ErrorTypeNotFound))
	assert.False(t, IsKind(nil, ErrorTypeNotFound))
	assert.False(t, IsKind(io.EOF, ErrorTypeNotFound))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, TypeOf(NotFound("ghost")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
	assert.Equal(t, ErrorTypeStoreIO, TypeOf(fmt.Errorf("x: %w", StoreIO(io.ErrShortWrite, "write"))))
}

func TestUnwrap(t *testing.T) {
	err := StoreIO(io.ErrUnexpectedEOF, "read db")
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "store_io")
	assert.Contains(t, err.Error(), "read db")
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		typ       ErrorType
	}{
		{0, false, ErrorTypeUnknown},
		{401, false, ErrorTypeAuth},
		{404, false, ErrorTypeNotFound},
		{429, true, ErrorTypeRateLimit},
		{502, true, ErrorTypeServerError},
		{418, false, ErrorTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.typ, TypeForStatus(tt.status))
			assert.Equal(t, tt.retryable, IsRetryable(TypeForStatus(tt.status)))
		})
	}

	assert.True(t, IsRetryableError(New(ErrorTypeNetwork, 0, "reset")))
	assert.False(t, IsRetryableError(NotFound("x")))
}

func TestRetryAfterOf(t *testing.T) {
	limited := &Error{Type: ErrorTypeRateLimit, Code: 429, Message: "slow down", RetryAfter: 3 * time.Second}
	assert.Equal(t, 3*time.Second, RetryAfterOf(limited))
	assert.Equal(t, 3*time.Second, RetryAfterOf(fmt.Errorf("get scores: %w", limited)))
	assert.Equal(t, time.Duration(0), RetryAfterOf(New(ErrorTypeServerError, 502, "bad gateway")))
	assert.Equal(t, time.Duration(0), RetryAfterOf(nil))
}

func TestStatusCode(t *testing.T) {
	inner := New(ErrorTypeNotFound, 404, "no such set")
	assert.Equal(t, 404, StatusCode(Wrap(ErrorTypeDownloadFailed, inner, "set 555")))
	assert.Equal(t, 0, StatusCode(Wrap(ErrorTypeNetwork, io.EOF, "reset")))
	assert.Equal(t, 0, StatusCode(nil))
}
