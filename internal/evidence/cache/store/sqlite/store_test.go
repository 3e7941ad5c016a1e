package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence/cache"
	"phoneintel/internal/evidence/cache/cachetest"
)

func open(t *testing.T, clock *cachetest.Clock) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.sqlite3"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	cachetest.Run(t, func(t *testing.T, clock *cachetest.Clock) cache.Store {
		return open(t, clock)
	}, cachetest.Options{})
}

func TestSchema(t *testing.T) {
	s := open(t, cachetest.NewClock())

	assert.True(t, s.db.Migrator().HasTable("cache"))
	assert.True(t, s.db.Migrator().HasIndex(&cacheRow{}, "idx_cache_expires_at"))
	for _, col := range []string{"key", "value_json", "expires_at"} {
		assert.True(t, s.db.Migrator().HasColumn(&cacheRow{}, col), col)
	}
}

func TestExpiryStoredAsEpochSeconds(t *testing.T) {
	clock := cachetest.NewClock()
	s := open(t, clock)
	ctx := context.Background()
	key := cache.Key("unit", "epoch")
	require.NoError(t, s.Set(ctx, key, []byte(`[]`), 90*time.Second))

	var row cacheRow
	require.NoError(t, s.db.Where("key = ?", key).Take(&row).Error)
	assert.Equal(t, clock.Now().Unix()+90, row.ExpiresAt)
}

func TestReopenKeepsEntries(t *testing.T) {
	clock := cachetest.NewClock()
	path := filepath.Join(t.TempDir(), "cache.sqlite3")
	ctx := context.Background()

	s, err := Open(path, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte(`1`), time.Minute))
	require.NoError(t, s.Close())

	s, err = Open(path, WithClock(clock.Now))
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(got))
}
