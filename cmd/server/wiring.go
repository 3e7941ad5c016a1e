package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phoneintel/internal/audit"
	"phoneintel/internal/audit/publisher/kafka"
	auditjsonl "phoneintel/internal/audit/store/jsonl"
	auditmemory "phoneintel/internal/audit/store/memory"
	auditpostgres "phoneintel/internal/audit/store/postgres"
	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/cache"
	cachememory "phoneintel/internal/evidence/cache/store/memory"
	cachepostgres "phoneintel/internal/evidence/cache/store/postgres"
	cacheredis "phoneintel/internal/evidence/cache/store/redis"
	cachesqlite "phoneintel/internal/evidence/cache/store/sqlite"
	"phoneintel/internal/owner"
	"phoneintel/internal/owner/providers/callerid"
	"phoneintel/internal/platform/config"
	"phoneintel/internal/platform/redis"
	"phoneintel/internal/transport/httpclient"
	"phoneintel/pkg/platform/circuit"
)

const (
	cacheKeyPrefix  = "phoneintel:evidence:"
	closeTimeout    = 5 * time.Second
	auditPartitions = 3
)

type cleanupFunc struct {
	name string
	fn   func(context.Context) error
}

// cleanupStack releases resources in reverse acquisition order.
type cleanupStack []cleanupFunc

func (c *cleanupStack) push(name string, fn func(context.Context) error) {
	*c = append(*c, cleanupFunc{name: name, fn: fn})
}

func (c *cleanupStack) run(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	for i := len(*c) - 1; i >= 0; i-- {
		f := (*c)[i]
		if err := f.fn(ctx); err != nil {
			log.Warn("cleanup failed", "resource", f.name, "error", err)
		}
	}
}

// openCacheStore returns nil when caching is disabled.
func openCacheStore(ctx context.Context, cfg config.Config, rc *redis.Client, cleanup *cleanupStack) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return cachememory.New(), nil
	case config.CacheBackendSQLite:
		s, err := cachesqlite.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		cleanup.push("sqlite cache", func(context.Context) error { return s.Close() })
		return s, nil
	case config.CacheBackendPostgres:
		s, err := cachepostgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		cleanup.push("postgres cache", func(context.Context) error { return s.Close() })
		return s, nil
	case config.CacheBackendRedis:
		if rc == nil {
			return nil, fmt.Errorf("cache backend %q requires REDIS_URL", cfg.Cache.Backend)
		}
		return cacheredis.New(rc.Client, cacheKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// auditPipeline is the owner audit trail: a durable primary store that
// answers reads, fronted by a publisher that optionally mirrors to kafka.
type auditPipeline struct {
	publisher *audit.Publisher
	reader    audit.Store
}

func openAuditStore(ctx context.Context, cfg config.Config, cleanup *cleanupStack) (audit.Store, error) {
	switch cfg.Audit.Sink {
	case config.AuditSinkMemory:
		return auditmemory.New(), nil
	case config.AuditSinkJSONL:
		s, err := auditjsonl.Open(cfg.Audit.JSONLPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		cleanup.push("audit log", func(context.Context) error { return s.Close() })
		return s, nil
	case config.AuditSinkPostgres:
		s, err := auditpostgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		cleanup.push("audit store", func(context.Context) error { s.Close(); return nil })
		return s, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

func openAudit(ctx context.Context, cfg config.Config, log *slog.Logger, cleanup *cleanupStack) (*auditPipeline, error) {
	store, err := openAuditStore(ctx, cfg, cleanup)
	if err != nil {
		return nil, err
	}
	m := audit.NewMetrics()
	opts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(m)}

	if len(cfg.Kafka.Brokers) > 0 {
		mirror, err := openMirror(ctx, cfg, log, m, cleanup)
		if err != nil {
			return nil, err
		}
		opts = append(opts, audit.WithMirror(mirror))
	}

	return &auditPipeline{
		publisher: audit.NewPublisher(store, opts...),
		reader:    store,
	}, nil
}

// openMirror starts the kafka mirror. A broker outage trips the breaker and
// diverts records to a local JSONL file; it never fails a lookup.
func openMirror(ctx context.Context, cfg config.Config, log *slog.Logger, m *audit.Metrics, cleanup *cleanupStack) (*audit.Mirror, error) {
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers,
		kafka.WithTopic(cfg.Audit.KafkaTopic),
		kafka.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	cleanup.push("kafka producer", func(ctx context.Context) error { producer.Close(ctx); return nil })

	if err := producer.EnsureTopic(ctx, auditPartitions, 1); err != nil {
		log.Warn("could not ensure audit topic; continuing", "topic", producer.Topic(), "error", err)
	}

	fallback, err := auditjsonl.Open(cfg.Audit.MirrorFallbackPath)
	if err != nil {
		return nil, fmt.Errorf("open mirror fallback: %w", err)
	}
	cleanup.push("mirror fallback", func(context.Context) error { return fallback.Close() })

	mirror := audit.NewMirror(producer,
		audit.WithFallback(fallback),
		audit.WithBreaker(circuit.New("audit-mirror")),
		audit.WithMirrorLogger(log),
		audit.WithMirrorMetrics(m),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := mirror.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("audit mirror stopped", "error", err)
		}
	}()
	cleanup.push("audit mirror", func(ctx context.Context) error {
		mirror.Stop()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return mirror, nil
}

// ownerAdapters builds the PII-capable adapters that have credentials.
func ownerAdapters(cfg config.Config, client *httpclient.Client, log *slog.Logger) []owner.Adapter {
	var opts []callerid.Option
	if cfg.Owner.CallerIDURL != "" {
		opts = append(opts, callerid.WithBaseURL(cfg.Owner.CallerIDURL))
	}
	a, err := callerid.New(client, cfg.Owner.CallerIDAPIKey, opts...)
	if err != nil {
		if evidence.IsConfigError(err) {
			log.Info("owner adapter disabled", "adapter", callerid.Name, "reason", err.Error())
		} else {
			log.Warn("owner adapter failed to initialise", "adapter", callerid.Name, "error", err)
		}
		return nil
	}
	return []owner.Adapter{a}
}
