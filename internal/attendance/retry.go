package attendance

import (
	"context"
	"time"

	"ms-attendance/internal/apperr"

	"github.com/cenkalti/backoff/v4"
)

// Retry replays op with exponential backoff while it fails with a retryable
// error (write conflict or transient storage failure). Any other error stops
// immediately and is returned as is.
func Retry(ctx context.Context, maxRetries int, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 0

	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil || apperr.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
