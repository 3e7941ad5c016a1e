package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"phoneintel/internal/evidence/cache"
	evmetrics "phoneintel/internal/evidence/metrics"
	"phoneintel/internal/evidence/orchestrator"
	"phoneintel/internal/lookup"
	lookuphandler "phoneintel/internal/lookup/handler"
	"phoneintel/internal/owner"
	"phoneintel/internal/platform/config"
	"phoneintel/internal/platform/httpserver"
	"phoneintel/internal/platform/logger"
	"phoneintel/internal/platform/metrics"
	"phoneintel/internal/platform/middleware"
	"phoneintel/internal/platform/redis"
	"phoneintel/internal/signals"
	httptransport "phoneintel/internal/transport/http"
	"phoneintel/internal/transport/httpclient"
	"phoneintel/internal/transport/ratelimit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var cleanup cleanupStack
	defer cleanup.run(log)

	evMetrics := evmetrics.New()
	appMetrics := metrics.New()

	health := map[string]httptransport.HealthCheck{}
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		cleanup.push("redis", func(context.Context) error { return rc.Close() })
		health["redis"] = rc.Health
	}

	limiter := ratelimit.NewHostLimiter(cfg.HTTP.RateLimitPerHostPerSec)
	client := httpclient.New(httpclient.Config{
		Timeout:     cfg.HTTP.Timeout,
		MaxRetries:  cfg.HTTP.MaxRetries,
		BackoffBase: cfg.HTTP.BackoffBase,
		BackoffCap:  cfg.HTTP.BackoffMax,
		UserAgent:   cfg.HTTP.UserAgent,
	}, httpclient.WithLimiter(limiter), httpclient.WithLogger(log))

	store, err := openCacheStore(ctx, cfg, rc, &cleanup)
	if err != nil {
		return err
	}
	if store != nil {
		sweeper := cache.NewSweeper(store, cfg.Cache.SweepInterval, log, evMetrics)
		sweeper.Start(ctx)
		cleanup.push("cache sweeper", func(context.Context) error { sweeper.Stop(); return nil })
	}

	auditPipeline, err := openAudit(ctx, cfg, log, &cleanup)
	if err != nil {
		return err
	}

	registry, err := lookup.NewRegistry(client, lookup.AdapterConfig{
		ScamListPath: cfg.Adapters.ScamListPath,
		GoogleAPIKey: cfg.Adapters.GoogleAPIKey,
		GoogleCX:     cfg.Adapters.GoogleCX,
	}, log)
	if err != nil {
		return err
	}

	engine := owner.NewEngine(
		owner.WithAdapters(ownerAdapters(cfg, client, log)...),
		owner.WithWeights(owner.ConfidenceWeights(cfg.Owner.Weights)),
		owner.WithAuditSink(auditPipeline.publisher),
		owner.WithLogger(log),
	)

	orch := orchestrator.New(
		orchestrator.WithLimit(cfg.Adapters.Limit),
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(evMetrics),
	)

	svcOpts := []lookup.Option{
		lookup.WithOwnerEngine(engine),
		lookup.WithOverrides(signals.LoadOverrides(cfg.Adapters.OverridesPath, log)),
		lookup.WithWeights(cfg.RiskWeights()),
		lookup.WithDefaultAdapters(cfg.Adapters.Default),
		lookup.WithLogger(log),
		lookup.WithMetrics(appMetrics),
	}
	if store != nil {
		svcOpts = append(svcOpts, lookup.WithCache(store,
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithLogger(log),
			cache.WithMetrics(evMetrics),
		))
	}
	svc := lookup.NewService(registry, orch, svcOpts...)

	handler := lookuphandler.New(svc, log,
		lookuphandler.WithTimeout(cfg.Server.LookupTimeout),
		lookuphandler.WithAuditReader(auditPipeline.reader, cfg.Server.AdminToken),
	)
	routerCfg := httptransport.Config{Logger: log, Health: health}
	if cfg.Server.JWTSigningKey != "" {
		routerCfg.Validator = middleware.NewHS256Validator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	} else {
		log.Warn("JWT_SIGNING_KEY not set; bearer tokens are ignored and callers are anonymous")
	}
	router := httptransport.NewRouter(routerCfg, handler)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.LookupTimeout)
	log.Info("starting phoneintel",
		"addr", cfg.Server.Addr,
		"cache_backend", cacheBackendLabel(cfg),
		"audit_sink", cfg.Audit.Sink,
		"audit_mirror", len(cfg.Kafka.Brokers) > 0,
	)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

func cacheBackendLabel(cfg config.Config) string {
	if !cfg.Cache.Enabled {
		return "disabled"
	}
	return cfg.Cache.Backend
}
