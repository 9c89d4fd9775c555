package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"itinera/internal/logger"
)

// BackOffFactory builds a fresh delay schedule for one buffered request.
type BackOffFactory func() backoff.BackOff

// DefaultBackOff waits 2^attempt seconds after each rate limited attempt: 2s, 4s, 8s...
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retryRateLimited runs op up to attempts times. Only ErrRateLimited is
// retried; every other error ends the loop immediately.
func retryRateLimited(ctx context.Context, provider string, attempts int, newBackOff BackOffFactory, op func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(attempts-1)), ctx)
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err == nil || errors.Is(err, ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, delay time.Duration) {
		logger.Warn("upstream rate limited", "provider", provider, "attempt", attempt, "of", attempts, "delay", delay)
	})
}
