package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	l := New(cfg, zap.NewNop())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l.now = func() time.Time { return clock.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		clock.sleeps = append(clock.sleeps, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	return l, clock
}

func TestLimiterAdmitsUpToWindowCapacity(t *testing.T) {
	l, clock := newTestLimiter(Config{MaxRequests: 3, Window: time.Second})

	calls := 0
	for i := 0; i < 3; i++ {
		err := l.Execute(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
	assert.Empty(t, clock.sleeps, "requests within capacity must not wait")
}

func TestLimiterWaitsWhenWindowFull(t *testing.T) {
	l, clock := newTestLimiter(Config{MaxRequests: 2, Window: time.Second})

	for i := 0; i < 3; i++ {
		err := l.Execute(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
	}

	require.Len(t, clock.sleeps, 1, "third request must wait for the window")
	assert.GreaterOrEqual(t, clock.sleeps[0], time.Second,
		"wait must cover the remainder of the window")
}

func TestLimiterWindowWaitsDoNotConsumeRetryBudget(t *testing.T) {
	l, _ := newTestLimiter(Config{MaxRequests: 1, Window: time.Second, MaxRetries: 0})

	// With MaxRetries 0, any 429 retry would fail; pure window waits must not.
	for i := 0; i < 5; i++ {
		err := l.Execute(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
	}
}

func TestLimiterBackoffDoublesPerRetry(t *testing.T) {
	l, clock := newTestLimiter(Config{
		MaxRequests: 100,
		Window:      time.Second,
		MaxRetries:  3,
		RetryAfter:  time.Second,
	})

	attempts := 0
	err := l.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts <= 3 {
			return &entity.StatusError{StatusCode: 429, URL: "http://upstream"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.sleeps)
}

func TestLimiterRetriesExhausted(t *testing.T) {
	l, _ := newTestLimiter(Config{
		MaxRequests: 100,
		Window:      time.Second,
		MaxRetries:  2,
		RetryAfter:  time.Millisecond,
	})

	attempts := 0
	err := l.Execute(context.Background(), func(context.Context) error {
		attempts++
		return &entity.StatusError{StatusCode: 429, URL: "http://upstream"}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, attempts, "initial attempt plus MaxRetries retries")
}

func TestLimiterPropagatesNonRateLimitErrors(t *testing.T) {
	l, clock := newTestLimiter(Config{MaxRequests: 100, Window: time.Second, MaxRetries: 5})

	boom := errors.New("connection refused")
	attempts := 0
	err := l.Execute(context.Background(), func(context.Context) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts, "non-429 failures must not be retried")
	assert.Empty(t, clock.sleeps)
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(&entity.StatusError{StatusCode: 429}))
	assert.True(t, IsRateLimitError(errors.New("got HTTP 429 from upstream")))
	assert.False(t, IsRateLimitError(&entity.StatusError{StatusCode: 500}))
	assert.False(t, IsRateLimitError(errors.New("connection reset")))
	assert.False(t, IsRateLimitError(nil))
}

func TestLimiterContextCancelledDuringWait(t *testing.T) {
	l, _ := newTestLimiter(Config{MaxRequests: 1, Window: time.Minute})
	l.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	require.NoError(t, l.Execute(context.Background(), func(context.Context) error { return nil }))
	err := l.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
