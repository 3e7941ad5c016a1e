package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phoneintel/pkg/requestcontext"
)

// ErrInvalidRecord is returned for records missing required fields.
var ErrInvalidRecord = errors.New("invalid audit record")

// Publisher is the fail-closed entry point for audit records. Append blocks
// until the primary store accepts the record; if that fails the caller gets
// an error and must treat the privileged operation as unaudited. A Mirror,
// when configured, receives a copy asynchronously after the primary write.
type Publisher struct {
	store   Sink
	mirror  *Mirror
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithMirror forwards persisted records to an asynchronous mirror.
func WithMirror(m *Mirror) Option {
	return func(p *Publisher) {
		p.mirror = m
	}
}

// NewPublisher creates a publisher over the primary store.
func NewPublisher(store Sink, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Append validates and synchronously persists rec.
func (p *Publisher) Append(ctx context.Context, rec Record) error {
	start := time.Now()

	if rec.Adapter == "" {
		return fmt.Errorf("%w: adapter is required", ErrInvalidRecord)
	}
	if !rec.Result.IsValid() {
		return fmt.Errorf("%w: unknown result %q", ErrInvalidRecord, rec.Result)
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if rec.RequestID == "" {
		rec.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, rec); err != nil {
		p.metrics.IncPersistFailures()
		p.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
			"adapter", rec.Adapter,
			"result", rec.Result,
			"caller", rec.Caller,
			"error", err,
		)
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	p.metrics.ObservePersist(time.Since(start))
	p.metrics.IncEmitted(rec.Result)
	p.mirror.Enqueue(rec)
	return nil
}
