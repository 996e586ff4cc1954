package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/metrics"
)

// ErrRetriesExhausted is returned when an operation keeps failing with a
// rate-limit signal after the full retry budget has been spent.
var ErrRetriesExhausted = errors.New("rate limit retries exhausted")

// safetyMargin is added to window waits so an admission retried right at the
// window boundary does not race the pruning check.
const safetyMargin = 25 * time.Millisecond

// Config controls sliding-window admission and 429 backoff.
type Config struct {
	// MaxRequests admitted within any trailing Window.
	MaxRequests int
	Window      time.Duration
	// MaxRetries bounds retries after upstream 429s; window waits are free.
	MaxRetries int
	// RetryAfter is the base backoff, doubled on each consecutive 429.
	RetryAfter time.Duration
}

// Limiter wraps an asynchronous operation with sliding-window admission
// control and bounded exponential backoff on upstream rate-limit errors.
// One Limiter instance guards one external API.
type Limiter struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	timestamps []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter. Zero config fields fall back to permissive defaults.
func New(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = time.Second
	}
	return &Limiter{
		cfg:    cfg,
		logger: logger.Named("RateLimiter"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Execute runs op once a window slot is available, retrying with exponential
// backoff when op fails with a rate-limit signal. Any other failure
// propagates immediately. Each attempt (initial or retry) occupies a window
// slot; waiting for a slot never consumes the retry budget.
func (l *Limiter) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	retries := 0
	for {
		if err := l.waitForSlot(ctx); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRateLimitError(err) {
			return err
		}

		retries++
		metrics.RateLimitRetries.Inc()
		if retries > l.cfg.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retries, err)
		}

		backoff := l.cfg.RetryAfter << (retries - 1)
		l.logger.Warn("upstream rate limited, backing off",
			zap.Int("retry", retries),
			zap.Duration("backoff", backoff))
		if err := l.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// waitForSlot blocks until the sliding window has capacity, then records the
// admission timestamp.
func (l *Limiter) waitForSlot(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.timestamps) < l.cfg.MaxRequests {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.timestamps[0].Add(l.cfg.Window).Sub(now) + safetyMargin
		l.mu.Unlock()

		metrics.RateLimitWaits.Inc()
		l.logger.Debug("request window full, waiting for capacity", zap.Duration("wait", wait))
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops admission timestamps that have left the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept
}

// IsRateLimitError reports whether err carries an upstream rate-limit signal:
// an HTTP 429 status or an error message mentioning 429.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *entity.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429
	}
	return strings.Contains(err.Error(), "429")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
