package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Key builds the normalized composite cache key for a token on a chain.
// Lowercasing keeps case or venue variations from causing false misses.
func Key(chainID, address string) string {
	return strings.ToLower(chainID + "-" + address)
}

// ExpiringCache is a key/value cache over a durable Store with a fixed TTL
// checked lazily on every read. A TTL of zero means entries never expire
// (used for token metadata, which is treated as immutable once observed).
//
// Instances are process-wide: constructed once in main and injected into the
// components that share them.
type ExpiringCache struct {
	name   string
	store  Store
	ttl    time.Duration
	logger *zap.Logger

	// injectable for tests
	now func() time.Time
}

// New creates a cache over store. name labels metrics and logs.
func New(name string, store Store, ttl time.Duration, logger *zap.Logger) *ExpiringCache {
	return &ExpiringCache{
		name:   name,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("Cache").With(zap.String("cache", name)),
		now:    time.Now,
	}
}

// Get loads the entry for key into out (via JSON) and reports whether a live
// entry was found. An expired entry is treated as a miss and removed
// best-effort; a removal failure does not affect the miss result.
func (c *ExpiringCache) Get(ctx context.Context, key string, out any) (bool, error) {
	e, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.CacheMisses.WithLabelValues(c.name).Inc()
			return false, nil
		}
		return false, fmt.Errorf("cache %s: get %q: %w", c.name, key, err)
	}

	if c.expired(e) {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		c.removeExpired(key)
		return false, nil
	}

	metrics.CacheHits.WithLabelValues(c.name).Inc()
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return false, fmt.Errorf("cache %s: decode %q: %w", c.name, key, err)
	}
	return true, nil
}

// Contains reports whether a live entry exists for key without decoding its
// payload. Used by the denylist, where presence alone is the signal.
func (c *ExpiringCache) Contains(ctx context.Context, key string) (bool, error) {
	return c.Get(ctx, key, nil)
}

// Set writes value for key, replacing any previous entry.
func (c *ExpiringCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache %s: encode %q: %w", c.name, key, err)
	}
	if err := c.store.Put(ctx, Entry{Key: key, Value: raw, Timestamp: c.now()}); err != nil {
		return fmt.Errorf("cache %s: put %q: %w", c.name, key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (c *ExpiringCache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Sweep removes every expired entry in one pass and returns how many were
// removed. No-op for caches without a TTL.
func (c *ExpiringCache) Sweep(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	removed, err := c.store.DeleteOlderThan(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return 0, fmt.Errorf("cache %s: sweep: %w", c.name, err)
	}
	if removed > 0 {
		metrics.CacheSweeps.WithLabelValues(c.name).Add(float64(removed))
	}
	return removed, nil
}

// StartSweeper runs Sweep on its own timer until ctx is cancelled. Sweeping
// is a storage-growth bound only; reads stay correct without it because
// expiry is re-checked on every Get.
func (c *ExpiringCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if c.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := c.Sweep(ctx)
				if err != nil {
					c.logger.Warn("sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					c.logger.Debug("swept expired entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (c *ExpiringCache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.Timestamp) > c.ttl
}

// removeExpired deletes an entry discovered stale during a read. Best-effort:
// the read already reported a miss, so a delete failure is only logged.
func (c *ExpiringCache) removeExpired(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to remove expired entry", zap.String("key", key), zap.Error(err))
		}
	}()
}
