package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds how many times an operation is attempted and how long to
// wait between attempts.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultSaveRetries is how many times the viewer retries a failed save.
const DefaultSaveRetries = 3

// DefaultRetryPolicy is used by the viewer's save path: one try plus
// DefaultSaveRetries retries.
var DefaultRetryPolicy = SaveRetryPolicy(DefaultSaveRetries, 200*time.Millisecond)

// SaveRetryPolicy allows the first attempt plus retries more.
func SaveRetryPolicy(retries int, delay time.Duration) RetryPolicy {
	return RetryPolicy{Attempts: retries + 1, Delay: delay}
}

// Retry runs op until it succeeds, the policy is exhausted, or ctx is done.
// Validation errors are returned immediately. onFailure, if non-nil, is called
// after every failed attempt.
func Retry(ctx context.Context, policy RetryPolicy, op func() error, onFailure func(attempt int, err error)) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if onFailure != nil {
			onFailure(attempt, lastErr)
		}
		if errors.Is(lastErr, ErrValidation) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempt(s): %w", attempt, lastErr)
		case <-timer.C:
		}
	}
	return fmt.Errorf("giving up after %d attempt(s): %w", attempts, lastErr)
}
