package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"phoneintel/pkg/platform/circuit"
)

// Mirror copies audit records to a secondary sink (typically a Kafka topic)
// off the request path. Records that the primary mirror sink rejects go to
// the fallback sink while the breaker is open; with no fallback they are
// dropped and counted, since the primary store already holds them.
type Mirror struct {
	sink     Sink
	fallback Sink
	breaker  *circuit.Breaker
	inbox    chan Record
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	stopOnce sync.Once
	done     chan struct{}
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

func WithFallback(s Sink) MirrorOption {
	return func(m *Mirror) { m.fallback = s }
}

func WithBreaker(b *circuit.Breaker) MirrorOption {
	return func(m *Mirror) { m.breaker = b }
}

func WithQueueSize(n int) MirrorOption {
	return func(m *Mirror) {
		if n > 0 {
			m.inbox = make(chan Record, n)
		}
	}
}

func WithMirrorLogger(l *slog.Logger) MirrorOption {
	return func(m *Mirror) { m.logger = l }
}

func WithMirrorMetrics(mt *Metrics) MirrorOption {
	return func(m *Mirror) { m.metrics = mt }
}

// NewMirror creates a mirror; call Run to start draining.
func NewMirror(sink Sink, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		sink:    sink,
		breaker: circuit.New("audit-mirror"),
		inbox:   make(chan Record, 256),
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue hands rec to the mirror without blocking. Nil-safe.
func (m *Mirror) Enqueue(rec Record) {
	if m == nil {
		return
	}
	select {
	case <-m.done:
		m.metrics.IncMirrorDropped()
	case m.inbox <- rec:
	default:
		m.metrics.IncMirrorDropped()
		m.logger.Warn("audit mirror queue full, dropping record", "id", rec.ID, "adapter", rec.Adapter)
	}
}

// Run drains the queue until ctx is cancelled or Stop is called, then
// flushes what is already queued.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-m.done:
			m.flush(context.WithoutCancel(ctx))
			return nil
		case rec := <-m.inbox:
			m.deliver(ctx, rec)
		}
	}
}

// Stop ends Run after flushing. Idempotent.
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Mirror) flush(ctx context.Context) {
	for {
		select {
		case rec := <-m.inbox:
			m.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (m *Mirror) deliver(ctx context.Context, rec Record) {
	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.sink.Append(sendCtx, rec)
	cancel()

	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.metrics.SetMirrorOpen(false)
			m.logger.Info("audit mirror recovered")
		}
		return
	}

	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.metrics.SetMirrorOpen(true)
		m.logger.Warn("audit mirror circuit opened", "error", err)
	}
	if !useFallback || m.fallback == nil {
		m.metrics.IncMirrorDropped()
		m.logger.Warn("audit mirror delivery failed", "id", rec.ID, "error", err)
		return
	}
	if ferr := m.fallback.Append(ctx, rec); ferr != nil {
		m.metrics.IncMirrorDropped()
		m.logger.Error("audit mirror fallback failed", "id", rec.ID, "error", ferr)
		return
	}
	m.metrics.IncMirrorFallback()
}
