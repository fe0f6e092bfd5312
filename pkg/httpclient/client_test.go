package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osufetch/pkg/config"
	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
)

func newTestClient(threshold uint32) *Client {
	return New(Options{
		Name:    "test",
		Timeout: 5 * time.Second,
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: threshold,
		},
		UserAgent: "osufetch-test",
	}, logger.NewNopLogger())
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "osufetch-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": 7, "name": "x"}`)
	}))
	defer server.Close()

	c := newTestClient(5)
	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), server.URL, http.Header{"Authorization": {"Bearer abc"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.ID)
}

func TestGetJSONParsingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := newTestClient(5).GetJSON(context.Background(), server.URL, nil, &out)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeParsing))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.ErrorType
	}{
		{http.StatusUnauthorized, apperrors.ErrorTypeAuth},
		{http.StatusNotFound, apperrors.ErrorTypeNotFound},
		{http.StatusTooManyRequests, apperrors.ErrorTypeRateLimit},
		{http.StatusBadGateway, apperrors.ErrorTypeServerError},
		{http.StatusTeapot, apperrors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			resp, err := newTestClient(5).Do(context.Background(), req)
			assert.Nil(t, resp)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperrors.TypeOf(err))
		})
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := newTestClient(5).Do(context.Background(), req)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeNetwork))
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(2)
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, err := c.Do(context.Background(), req)
		assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeServerError))
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := c.Do(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test unavailable")
	assert.Equal(t, int32(2), hits.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(1)
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, err := c.Do(context.Background(), req)
		assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeNotFound))
	}
}

func TestRedactDropsQuery(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://osu.ppy.sh/api/get_user?k=secret&u=x", nil)
	assert.NotContains(t, redact(req), "secret")
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tl := logger.NewTestLogger()
	c := New(Options{Name: "osu", Timeout: 5 * time.Second}, tl)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/get_user?k=secret", nil)
	_, err := c.Do(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeRateLimit))
	assert.Equal(t, 3*time.Second, apperrors.RetryAfterOf(err))

	msgs := tl.GetMessagesByLevel("WARN")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Rate limit reached, backing off", msgs[0].Message)
	assert.Equal(t, 3*time.Second, msgs[0].Fields["retry_after"])
	assert.NotContains(t, msgs[0].Fields["endpoint"], "secret")
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "120", 2 * time.Minute},
		{"padded", " 5 ", 5 * time.Second},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"date in the past", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"zero", "0", 0},
		{"negative", "-4", 0},
		{"empty", "", 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value, now))
		})
	}
}
