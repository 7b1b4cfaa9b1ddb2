package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoNoRetriesRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 0}, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoSucceedsWithoutExhaustingRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return nil
		}
		return errors.New("not yet")
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoRetriesUpToAttemptsThenFails(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 2, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("always fails")
	})
	require.Error(t, err)
	// Attempts=2 means up to 2 additional tries beyond the first, so 3 total.
	require.Equal(t, 3, calls, "want 1 initial + 2 retries")
}

func TestDoFixedDelayBetweenAttempts(t *testing.T) {
	delay := 20 * time.Millisecond
	start := time.Now()
	_ = Do(context.Background(), Policy{Attempts: 2, Delay: delay}, func(ctx context.Context) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)
	// Two retries each separated by delay: at least 2*delay should elapse.
	require.GreaterOrEqual(t, elapsed, 2*delay)
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Delay: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("fail")
	})
	require.Error(t, err)
	require.LessOrEqual(t, calls, 2, "retry loop should stop shortly after cancellation")
}
