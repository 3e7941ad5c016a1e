// Package cachetest checks cache.Store implementations against the shared
// TTL contract.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoneintel/internal/evidence/cache"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed whole second.
func NewClock() *Clock {
	return &Clock{now: time.Unix(1_700_000_000, 0)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds a fresh, empty store reading time from clock.
type Factory func(t *testing.T, clock *Clock) cache.Store

// Options tune which parts of the contract a backend can exercise.
type Options struct {
	// NativeExpiry backends ignore the injected clock; expiry checks are
	// skipped and must be covered by the backend's own tests.
	NativeExpiry bool
}

// Run executes the conformance checks.
func Run(t *testing.T, newStore Factory, opts Options) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key is a miss", func(t *testing.T) {
		s := newStore(t, NewClock())
		_, ok, err := s.Get(ctx, cache.Key("unit", "absent"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t, NewClock())
		key := cache.Key("unit", "k1")
		require.NoError(t, s.Set(ctx, key, []byte(`{"ok":true}`), 10*time.Second))

		got, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"ok":true}`, string(got))
	})

	t.Run("overwrite replaces value", func(t *testing.T) {
		s := newStore(t, NewClock())
		key := cache.Key("unit", "k2")
		require.NoError(t, s.Set(ctx, key, []byte(`1`), time.Minute))
		require.NoError(t, s.Set(ctx, key, []byte(`2`), time.Minute))

		got, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "2", string(got))
	})

	t.Run("delete removes entry", func(t *testing.T) {
		s := newStore(t, NewClock())
		key := cache.Key("unit", "k5")
		require.NoError(t, s.Set(ctx, key, []byte(`1`), time.Minute))
		require.NoError(t, s.Delete(ctx, key))

		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, s.Delete(ctx, key), "absent key")
	})

	t.Run("non-positive ttl does not write", func(t *testing.T) {
		s := newStore(t, NewClock())
		key := cache.Key("unit", "k3")
		require.NoError(t, s.Set(ctx, key, []byte(`1`), 0))
		require.NoError(t, s.Set(ctx, key, []byte(`1`), -time.Second))

		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent access", func(t *testing.T) {
		s := newStore(t, NewClock())
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := cache.Key("unit", fmt.Sprint(i%4))
				assert.NoError(t, s.Set(ctx, key, []byte(`"v"`), time.Minute))
				_, _, err := s.Get(ctx, key)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
	})

	if opts.NativeExpiry {
		return
	}

	t.Run("entry expires at ttl and is purged on read", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock)
		key := cache.Key("unit", "k4")
		require.NoError(t, s.Set(ctx, key, []byte(`{"ok":true}`), 10*time.Second))

		clock.Advance(9 * time.Second)
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "entry must be live before ttl")

		clock.Advance(time.Second)
		_, ok, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "entry must be gone at ttl")

		n, err := s.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "read should already have purged the entry")
	})

	t.Run("delete expired sweeps only expired rows", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock)
		require.NoError(t, s.Set(ctx, cache.Key("unit", "short1"), []byte(`1`), time.Second))
		require.NoError(t, s.Set(ctx, cache.Key("unit", "short2"), []byte(`1`), time.Second))
		require.NoError(t, s.Set(ctx, cache.Key("unit", "long"), []byte(`1`), time.Hour))

		clock.Advance(2 * time.Second)
		n, err := s.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, ok, err := s.Get(ctx, cache.Key("unit", "long"))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
