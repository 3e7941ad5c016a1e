// Package sqlite is a file-backed cache.Store. The on-disk layout is a single
// table keyed by an opaque string with an indexed integer expiry.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// cacheRow maps the cache table.
type cacheRow struct {
	Key       string `gorm:"column:key;primaryKey"`
	ValueJSON string `gorm:"column:value_json;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;index:idx_cache_expires_at"`
}

func (cacheRow) TableName() string { return "cache" }

// Store persists cache entries in SQLite.
type Store struct {
	db  *gorm.DB
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

// Open creates the database file and schema if needed.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One connection serializes writers; WAL lets readers proceed.
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		return nil, fmt.Errorf("set synchronous: %w", err)
	}
	if err := db.AutoMigrate(&cacheRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns a live entry; an expired row is deleted.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := s.now().Unix()
	var row cacheRow
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	if row.ExpiresAt <= now {
		err := s.db.WithContext(ctx).
			Where("key = ? AND expires_at <= ?", key, now).
			Delete(&cacheRow{}).Error
		if err != nil {
			return nil, false, fmt.Errorf("purge expired entry: %w", err)
		}
		return nil, false, nil
	}
	return []byte(row.ValueJSON), true, nil
}

// Set upserts value. A non-positive ttl is a no-op.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	row := cacheRow{
		Key:       key,
		ValueJSON: string(value),
		ExpiresAt: s.now().Add(ttl).Unix(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&cacheRow{}).Error; err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes every row whose expiry has passed.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().Unix()).
		Delete(&cacheRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired entries: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
