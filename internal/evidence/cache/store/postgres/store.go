// Package postgres is a cache.Store shared by every replica through
// PostgreSQL, using the same single-table layout as the SQLite store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store persists cache entries in PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects with the lib/pq driver and ensures the schema exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres cache: dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres cache: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres cache: %w", err)
	}
	return NewWithDB(ctx, db, opts...)
}

// NewWithDB reuses an existing *sql.DB.
func NewWithDB(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres cache: db is required")
	}
	if err := ensureTable(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS evidence_cache (
  key text PRIMARY KEY,
  value_json text NOT NULL,
  expires_at bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evidence_cache_expires_at ON evidence_cache (expires_at);
`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// Get returns a live entry; an expired row is deleted.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := s.now().Unix()
	var value string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value_json, expires_at FROM evidence_cache WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	if expiresAt <= now {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM evidence_cache WHERE key = $1 AND expires_at <= $2`, key, now)
		if err != nil {
			return nil, false, fmt.Errorf("purge expired entry: %w", err)
		}
		return nil, false, nil
	}
	return []byte(value), true, nil
}

// Set upserts value. A non-positive ttl is a no-op.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO evidence_cache (key, value_json, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value_json = EXCLUDED.value_json, expires_at = EXCLUDED.expires_at`,
		key, string(value), s.now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evidence_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes every row whose expiry has passed.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM evidence_cache WHERE expires_at <= $1`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
