package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"phoneintel/internal/audit"
)

// DefaultGroup is the consumer group that materializes the audit topic.
const DefaultGroup = "phoneintel-audit-materializer"

// Consumer reads audit records from the topic and appends them to a store.
// Offsets are committed only after a poll's records are all stored, so a
// crash replays rather than loses records.
type Consumer struct {
	client *kgo.Client
	store  audit.Sink
	logger *slog.Logger
}

// NewConsumer joins group and subscribes to topic.
func NewConsumer(brokers []string, group, topic string, store audit.Sink, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka consumer: no brokers configured")
	}
	if group == "" {
		group = DefaultGroup
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &Consumer{client: client, store: store, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, fe := range fetches.Errors() {
			c.logger.Warn("audit fetch error", "topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
		}

		var storeErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if storeErr != nil {
				return
			}
			storeErr = c.handle(ctx, r)
		})
		if storeErr != nil {
			// Leave offsets uncommitted so the batch is redelivered.
			return storeErr
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Warn("audit offset commit failed", "error", err)
		}
	}
}

// handle returns an error only for store failures. Malformed messages are
// logged and skipped so they cannot block the partition.
func (c *Consumer) handle(ctx context.Context, r *kgo.Record) error {
	rec, err := Decode(r.Key, r.Value)
	if err != nil {
		c.logger.Error("CRITICAL: malformed audit message",
			"partition", r.Partition,
			"offset", r.Offset,
			"error", err,
		)
		return nil
	}
	if err := c.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("materialize audit record %s: %w", rec.ID, err)
	}
	return nil
}

// Decode parses a produced message. The key must match the body's ID.
func Decode(key, value []byte) (audit.Record, error) {
	id, err := uuid.ParseBytes(key)
	if err != nil {
		return audit.Record{}, fmt.Errorf("parse key: %w", err)
	}
	var rec audit.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return audit.Record{}, fmt.Errorf("decode body: %w", err)
	}
	if rec.ID != id {
		return audit.Record{}, fmt.Errorf("key %s does not match record id %s", id, rec.ID)
	}
	if !rec.Result.IsValid() {
		return audit.Record{}, fmt.Errorf("unknown result %q", rec.Result)
	}
	return rec, nil
}

func (c *Consumer) Close() {
	c.client.Close()
}
