// Command audit-consumer materializes the owner-audit Kafka topic into a
// durable store on a compliance host.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"phoneintel/internal/audit"
	"phoneintel/internal/audit/publisher/kafka"
	auditjsonl "phoneintel/internal/audit/store/jsonl"
	auditpostgres "phoneintel/internal/audit/store/postgres"
	"phoneintel/internal/platform/config"
	"phoneintel/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("audit consumer exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Group, cfg.Audit.KafkaTopic, store, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	log.Info("materializing owner audit topic",
		"brokers", cfg.Kafka.Brokers,
		"group", cfg.Kafka.Group,
		"sink", cfg.Audit.Sink,
	)
	return consumer.Run(ctx)
}

// openStore only accepts durable sinks; materializing into memory would
// lose everything on restart.
func openStore(ctx context.Context, cfg config.Config) (audit.Sink, func(), error) {
	switch cfg.Audit.Sink {
	case config.AuditSinkJSONL:
		s, err := auditjsonl.Open(cfg.Audit.JSONLPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.AuditSinkPostgres:
		s, err := auditpostgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("audit consumer needs a durable sink (jsonl or postgres), got %q", cfg.Audit.Sink)
	}
}
