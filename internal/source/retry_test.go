package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixedRandom(v float64) func() float64 {
	return func() float64 { return v }
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	policy := newRetryPolicy(5, 100*time.Millisecond, time.Second)
	policy.random = fixedRandom(0.5)

	require.Equal(t, 100*time.Millisecond, policy.backoff(1))
	require.Equal(t, 200*time.Millisecond, policy.backoff(2))
	require.Equal(t, 400*time.Millisecond, policy.backoff(3))
	require.Equal(t, time.Second, policy.backoff(5))
	require.Equal(t, time.Second, policy.backoff(64))
	require.Equal(t, time.Second, policy.backoff(5000))
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	policy := newRetryPolicy(5, 100*time.Millisecond, time.Second)

	policy.random = fixedRandom(0)
	require.InDelta(t, float64(85*time.Millisecond), float64(policy.backoff(1)), float64(time.Microsecond))

	policy.random = fixedRandom(0.999)
	got := policy.backoff(1)
	require.Greater(t, got, 100*time.Millisecond)
	require.Less(t, got, 115*time.Millisecond)

	// jitter never pushes past the cap
	require.Equal(t, time.Second, policy.backoff(10))
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	policy := newRetryPolicy(-1, 0, 0)
	require.Equal(t, 0, policy.MaxRetries)
	require.Equal(t, defaultRetryDelay, policy.InitialDelay)
	require.Equal(t, defaultMaxRetryDelay, policy.MaxDelay)

	policy = newRetryPolicy(1, time.Minute, time.Second)
	require.Equal(t, time.Minute, policy.MaxDelay)
}

func TestWithRetryRecovers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	policy := newRetryPolicy(3, time.Millisecond, time.Millisecond)

	calls := 0
	err := withRetry(context.Background(), policy, zap.New(core), "eth_getLogs", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	retries := logs.FilterMessage("operation failed, retrying").All()
	require.Len(t, retries, 2)
	require.Equal(t, "eth_getLogs", retries[0].ContextMap()["operation"])
	require.Equal(t, 1, logs.FilterMessage("operation succeeded after retries").Len())
}

func TestWithRetryWrapsFinalError(t *testing.T) {
	policy := newRetryPolicy(2, time.Millisecond, time.Millisecond)
	cause := errors.New("connection refused")

	calls := 0
	err := withRetry(context.Background(), policy, zap.NewNop(), "eth_blockNumber", func(context.Context) error {
		calls++
		return cause
	})
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "eth_blockNumber failed after 3 attempts")
	require.Equal(t, 3, calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	policy := newRetryPolicy(10, time.Hour, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := withRetry(ctx, policy, zap.NewNop(), "eth_getLogs", func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, calls)
}
