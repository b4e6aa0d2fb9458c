package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryDelay    = 100 * time.Millisecond
	defaultMaxRetryDelay = 30 * time.Second
	retryMultiplier      = 2.0
	retryJitter          = 0.3
)

// retryPolicy is exponential backoff with jitter, capped at MaxDelay.
type retryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// random returns a value in [0, 1); nil uses math/rand.
	random func() float64
}

func newRetryPolicy(maxRetries int, initial, maxDelay time.Duration) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initial <= 0 {
		initial = defaultRetryDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return retryPolicy{MaxRetries: maxRetries, InitialDelay: initial, MaxDelay: maxDelay}
}

// backoff returns the wait before retry number attempt, counting from 1.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(retryMultiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	random := p.random
	if random == nil {
		random = rand.Float64
	}
	delay += (random() - 0.5) * retryJitter * delay
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// withRetry runs fn until it succeeds, the retries are exhausted or ctx ends.
func withRetry(ctx context.Context, policy retryPolicy, logger *zap.Logger, operation string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", operation, err)
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		}
		if attempt > policy.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt, err)
		}

		delay := policy.backoff(attempt)
		logger.Warn("operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", policy.MaxRetries),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s cancelled: %w", operation, ctx.Err())
		case <-timer.C:
		}
	}
}
