package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osufetch/pkg/config"
	errs "osufetch/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func fastConfig(attempts int) *Config {
	return &Config{MaxAttempts: attempts, Backoff: &ConstantBackoff{Delay: time.Millisecond}}
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeServerError, 502, "bad gateway")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errs.NotFound("ghost")
	}, fastConfig(5))

	assert.True(t, errs.IsKind(err, errs.ErrorTypeNotFound))
	assert.Equal(t, 1, calls)
}

func TestDoMaxAttempts(t *testing.T) {
	var retries []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	}

	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, 0, "reset")
	}, cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.True(t, errs.IsKind(err, errs.ErrorTypeNetwork))
	assert.Equal(t, 3, calls)
	// no sleep after the final attempt
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Hour}}

	err := Do(ctx, func(context.Context) error {
		cancel()
		return errs.New(errs.ErrorTypeNetwork, 0, "reset")
	}, cfg)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("untyped errors are retried")
		}
		return 42, nil
	}, fastConfig(2))

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeAuth, 401, "bad key")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeRateLimit, 429, "slow down")))
	assert.True(t, DefaultRetryIf(errors.New("eof")))
}

func TestFromSettings(t *testing.T) {
	disabled := FromSettings(config.RetryConfig{Enabled: false, MaxAttempts: 9}, nil)
	assert.Equal(t, 1, disabled.MaxAttempts)

	enabled := FromSettings(config.DefaultConfig().Retry, nil)
	assert.Equal(t, 3, enabled.MaxAttempts)
	eb, ok := enabled.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, eb.BaseDelay)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}

func TestDoHonoursRetryAfter(t *testing.T) {
	limited := &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429, Message: "slow down", RetryAfter: 150 * time.Millisecond}

	var calls []time.Time
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		calls = append(calls, time.Now())
		if len(calls) == 1 {
			return limited
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, []time.Duration{150 * time.Millisecond}, delays)
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), 150*time.Millisecond)
}
