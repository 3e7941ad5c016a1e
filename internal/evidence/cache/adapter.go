package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/metrics"
)

// DefaultTTL is used when no TTL option is given.
const DefaultTTL = time.Hour

// CachedAdapter decorates an evidence.Adapter with cache-aside lookups.
// Store failures never fail a check; they degrade to a pass-through.
type CachedAdapter struct {
	inner     evidence.Adapter
	store     Store
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a CachedAdapter.
type Option func(*CachedAdapter)

// WithTTL sets how long results live. A non-positive TTL disables writes.
func WithTTL(ttl time.Duration) Option {
	return func(c *CachedAdapter) {
		c.ttl = ttl
	}
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(c *CachedAdapter) {
		c.namespace = ns
	}
}

// WithLogger sets the logger for degraded-cache warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedAdapter) {
		c.logger = logger
	}
}

// WithMetrics records hit and miss counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *CachedAdapter) {
		c.metrics = m
	}
}

// WithClock overrides the time source used for corrupt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *CachedAdapter) {
		c.now = now
	}
}

// Wrap decorates inner with store.
func Wrap(inner evidence.Adapter, store Store, opts ...Option) *CachedAdapter {
	c := &CachedAdapter{
		inner:     inner,
		store:     store,
		ttl:       DefaultTTL,
		namespace: DefaultNamespace,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WrapAll decorates every adapter with the same store and options.
func WrapAll(adapters []evidence.Adapter, store Store, opts ...Option) []evidence.Adapter {
	out := make([]evidence.Adapter, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, Wrap(a, store, opts...))
	}
	return out
}

// Name reports the wrapped adapter's name so error maps and keys stay stable.
func (c *CachedAdapter) Name() string {
	return c.inner.Name()
}

// Unwrap returns the decorated adapter.
func (c *CachedAdapter) Unwrap() evidence.Adapter {
	return c.inner
}

// Check serves from cache when possible, otherwise delegates and writes
// through. A delegate call that ends with the context cancelled is not
// cached.
func (c *CachedAdapter) Check(ctx context.Context, e164 string, limit int) ([]evidence.Evidence, error) {
	name := c.inner.Name()
	key := Key(c.namespace, name, e164, strconv.Itoa(limit))

	if items, ok := c.lookup(ctx, name, key); ok {
		return items, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := c.inner.Check(ctx, e164, limit)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ttl <= 0 {
		return items, nil
	}

	payload, err := Encode(items)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "adapter", name, "error", err)
		return items, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "adapter", name, "error", err)
		c.metrics.RecordCacheLookup(name, "write_error")
	}
	return items, nil
}

func (c *CachedAdapter) lookup(ctx context.Context, name, key string) ([]evidence.Evidence, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.WarnContext(ctx, "cache read failed, passing through", "adapter", name, "error", err)
		}
		c.metrics.RecordCacheLookup(name, "error")
		return nil, false
	}
	if !ok {
		c.metrics.RecordCacheLookup(name, "miss")
		return nil, false
	}
	items, err := Decode(raw, c.now().UTC())
	if err != nil {
		c.logger.DebugContext(ctx, "discarding unreadable cache entry", "adapter", name, "error", err)
		c.metrics.RecordCacheLookup(name, "corrupt")
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "cache delete failed", "adapter", name, "error", err)
		}
		return nil, false
	}
	c.metrics.RecordCacheLookup(name, "hit")
	return items, true
}
