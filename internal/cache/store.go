package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no entry exists for the key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one durable cache record. Timestamp is the creation time; entries
// are never updated in place, a new Put replaces the old record.
type Entry struct {
	Key       string
	Value     []byte
	Timestamp time.Time
}

// Store is the durable backing for an ExpiringCache. Implementations must
// tolerate concurrent Get/Put; last write wins on racing Puts for the same
// key since entries are immutable facts keyed by content.
type Store interface {
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Put creates or replaces the entry for e.Key.
	Put(ctx context.Context, e Entry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteOlderThan removes every entry created before cutoff and returns
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
