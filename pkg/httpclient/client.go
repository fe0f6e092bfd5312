// Package httpclient is the shared HTTP transport for the osu! API and the
// beatmap mirror: request logging, rate limiting, a circuit breaker and
// status-to-error mapping.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"osufetch/pkg/config"
	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/ratelimit"
)

// Client performs requests against a single upstream
type Client struct {
	name       string
	httpClient *http.Client
	userAgent  string
	limiter    ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     logger.Logger
}

// Options configures a Client
type Options struct {
	Name      string
	Timeout   time.Duration
	UserAgent string
	// Limiter paces requests; nil means unlimited
	Limiter        ratelimit.Limiter
	CircuitBreaker config.CircuitBreakerConfig
	Transport      http.RoundTripper
	Metrics        *metrics.Recorder
}

// New creates a Client
func New(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited()
	}
	log = log.WithField("upstream", opts.Name)

	threshold := opts.CircuitBreaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	rec := opts.Metrics
	rec.SetBreakerState(opts.Name, stateValue(gobreaker.StateClosed))

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.CircuitBreaker.MaxRequests,
		Interval:    opts.CircuitBreaker.Interval,
		Timeout:     opts.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// only transport failures and server-side errors count against the upstream
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch apperrors.TypeOf(err) {
			case apperrors.ErrorTypeNetwork, apperrors.ErrorTypeServerError:
				return false
			default:
				return true
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Circuit breaker state changed")
			rec.SetBreakerState(name, stateValue(to))
		},
	})

	return &Client{
		name: opts.Name,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
		limiter:   opts.Limiter,
		breaker:   breaker,
		logger:    log,
	}
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// HTTPClient exposes the underlying client, e.g. for the OAuth2 token source
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// CloseIdleConnections releases pooled connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Do sends req and returns the response only for a 2xx status. Any other
// status is mapped to a typed error and the body is closed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeNetwork, err, "rate limiter wait cancelled")
	}

	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.doRequest(req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.Wrap(apperrors.ErrorTypeNetwork, err, fmt.Sprintf("%s unavailable", c.name))
	}
	return resp, err
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	fields := map[string]interface{}{
		"method": req.Method,
		"url":    redact(req),
	}
	c.logger.DebugWithFields("sending HTTP request", fields)

	resp, err := c.httpClient.Do(req)
	fields["duration"] = time.Since(start)
	if err != nil {
		c.logger.WithError(err).DebugWithFields("HTTP request failed", fields)
		return nil, apperrors.Wrap(apperrors.ErrorTypeNetwork, err, "network error")
	}

	fields["status"] = resp.StatusCode
	c.logger.DebugWithFields("HTTP request completed", fields)

	if err := checkResponseStatus(resp, time.Now()); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			logger.LogRateLimit(c.logger, redact(req), apperrors.RetryAfterOf(err))
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// checkResponseStatus maps non-2xx statuses to typed errors. 429 and 503
// carry the Retry-After delay when the server sent one.
func checkResponseStatus(resp *http.Response, now time.Time) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	t := apperrors.TypeForStatus(resp.StatusCode)
	err := apperrors.New(t, resp.StatusCode, fmt.Sprintf("unexpected status %s", resp.Status))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		err.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), now)
	}
	return err
}

// parseRetryAfter reads a Retry-After value given either as delay seconds
// or as an HTTP date. Unparseable or past values yield 0.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0
	}
	if d := at.Sub(now); d > 0 {
		return d
	}
	return 0
}

// redact drops query parameters so API keys never reach the logs
func redact(req *http.Request) string {
	u := *req.URL
	if u.RawQuery != "" {
		u.RawQuery = "…"
	}
	return u.String()
}

// GetJSON performs a GET request and decodes the JSON response into target.
// Decode failures are returned as parsing errors.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, target interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeUnknown, err, "failed to create request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.WithError(err).WarnWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redact(req),
			"body_preview": preview,
		})
		return &apperrors.Error{
			Type:    apperrors.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}
