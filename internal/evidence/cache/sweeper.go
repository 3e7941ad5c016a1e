package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"phoneintel/internal/evidence/metrics"
)

// Sweeper periodically purges expired entries so stores without native
// expiry do not grow without bound.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper. Call Start to begin sweeping.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  m,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until ctx ends or Stop is called.
// A non-positive interval leaves periodic sweeping off; SweepOnce still works.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.WarnContext(ctx, "cache sweeper disabled: non-positive interval", "interval", s.interval)
		return
	}
	if s.started.Swap(true) {
		return
	}
	go s.run(ctx)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}

// SweepOnce deletes expired entries immediately.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.AddSwept(n)
	return n, nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.DebugContext(ctx, "cache sweep removed expired entries", "count", n)
			}
		}
	}
}
