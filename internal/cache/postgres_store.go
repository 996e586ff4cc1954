package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a Postgres connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgresStore is a durable Store backed by a single cache_entries table.
// Entries from different logical caches share the table, partitioned by the
// cache name column.
type PostgresStore struct {
	pool *Pool
	name string
}

// NewPostgresStore creates a store scoped to the given logical cache name.
func NewPostgresStore(pool *Pool, name string) *PostgresStore {
	return &PostgresStore{pool: pool, name: name}
}

// EnsureSchema creates the cache_entries table if it does not exist.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			cache_name TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (cache_name, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("create cache_entries table: %w", err)
	}
	return nil
}

// Get returns the entry for key, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT key, value, created_at
		FROM cache_entries
		WHERE cache_name = $1 AND key = $2
	`, s.name, key)

	var e Entry
	if err := row.Scan(&e.Key, &e.Value, &e.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// Put creates or replaces the entry for e.Key.
func (s *PostgresStore) Put(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_entries (cache_name, key, value, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_name, key) DO UPDATE
		SET value = EXCLUDED.value,
		    created_at = EXCLUDED.created_at
	`, s.name, e.Key, e.Value, e.Timestamp)
	return err
}

// Delete removes the entry for key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM cache_entries
		WHERE cache_name = $1 AND key = $2
	`, s.name, key)
	return err
}

// DeleteOlderThan removes every entry created before cutoff.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM cache_entries
		WHERE cache_name = $1 AND created_at < $2
	`, s.name, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
