// Package orchestrator fans an E.164 lookup out to every configured evidence
// adapter concurrently and merges what comes back.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/metrics"
)

// DefaultLimit is the per-adapter result cap.
const DefaultLimit = 5

const tracerName = "phoneintel/internal/evidence/orchestrator"

// Result is the merged outcome of one run. Evidence order follows completion
// order and carries no meaning.
type Result struct {
	Evidence []evidence.Evidence
	// Errors maps adapter name to a failure message.
	Errors map[string]string
	// Latencies records how long each adapter took, failed or not.
	Latencies map[string]time.Duration
}

// Orchestrator runs adapters in parallel with per-adapter failure isolation.
type Orchestrator struct {
	limit   int
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimit sets the per-adapter result cap.
func WithLimit(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.limit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics enables latency and failure metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// New creates an orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		limit:  DefaultLimit,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Limit reports the per-adapter result cap.
func (o *Orchestrator) Limit() int {
	return o.limit
}

// collector gathers results from concurrent adapter calls.
type collector struct {
	mu        sync.Mutex
	evidence  []evidence.Evidence
	errors    map[string]string
	latencies map[string]time.Duration
}

func (c *collector) success(name string, items []evidence.Evidence, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evidence = append(c.evidence, items...)
	c.latencies[name] = d
}

func (c *collector) failure(name string, err error, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[name] = err.Error()
	c.latencies[name] = d
}

// Run invokes every adapter concurrently. An adapter failure is recorded in
// Result.Errors and never affects siblings. If ctx ends, every in-flight call
// is cancelled and Run returns ctx's error.
func (o *Orchestrator) Run(ctx context.Context, adapters []evidence.Adapter, e164 string) (*Result, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "evidence.run", trace.WithAttributes(
		attribute.Int("evidence.adapters", len(adapters)),
		attribute.Int("evidence.limit", o.limit),
	))
	defer span.End()

	c := &collector{
		evidence:  make([]evidence.Evidence, 0),
		errors:    make(map[string]string),
		latencies: make(map[string]time.Duration, len(adapters)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range adapters {
		g.Go(func() error {
			return o.runOne(ctx, gctx, adapter, e164, c)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evidence run cancelled")
		return nil, err
	}
	// A cancellation that raced the last adapter still wins.
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "evidence run cancelled")
		return nil, err
	}

	o.metrics.ObserveRun(time.Since(start))
	span.SetAttributes(
		attribute.Int("evidence.items", len(c.evidence)),
		attribute.Int("evidence.failed_adapters", len(c.errors)),
	)

	return &Result{Evidence: c.evidence, Errors: c.errors, Latencies: c.latencies}, nil
}

// runOne returns an error only when the caller's context has ended, which
// makes errgroup cancel the siblings.
func (o *Orchestrator) runOne(parent, ctx context.Context, adapter evidence.Adapter, e164 string, c *collector) error {
	name := adapter.Name()
	ctx, span := o.tracer.Start(ctx, "evidence.adapter", trace.WithAttributes(
		attribute.String("evidence.adapter", name),
	))
	defer span.End()

	start := time.Now()
	items, err := adapter.Check(ctx, e164, o.limit)
	elapsed := time.Since(start)

	if err != nil {
		if parentErr := parent.Err(); parentErr != nil {
			o.metrics.ObserveAdapter(name, "canceled", elapsed)
			span.SetStatus(codes.Error, "cancelled")
			return parentErr
		}
		category := evidence.Categorize(err)
		o.metrics.ObserveAdapter(name, "error", elapsed)
		o.metrics.IncrementAdapterError(name, string(category))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		o.logger.WarnContext(ctx, "evidence adapter failed",
			"adapter", name,
			"category", category,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		c.failure(name, err, elapsed)
		return nil
	}

	if len(items) > o.limit {
		items = items[:o.limit]
	}
	o.metrics.ObserveAdapter(name, "ok", elapsed)
	span.SetAttributes(attribute.Int("evidence.items", len(items)))
	o.logger.DebugContext(ctx, "evidence adapter finished",
		"adapter", name,
		"items", len(items),
		"duration_ms", elapsed.Milliseconds(),
	)
	c.success(name, items, elapsed)
	return nil
}

// IsCancellation reports whether err is a context cancellation or deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
