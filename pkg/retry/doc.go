// Package retry re-runs operations that fail with a retryable error.
//
// Errors typed by osufetch/pkg/errors are retried according to
// errors.IsRetryable; context cancellation is never retried.
//
//	users, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]models.User, error) {
//	    return c.fetchUsers(ctx, name)
//	}, retry.FromSettings(cfg.Retry, log))
package retry
