package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/config"
)

// Producer publishes notification tasks keyed by topic ref, so tasks for
// one eventable stay ordered within a partition.
type Producer struct {
	client *kgo.Client
	topic  string
}

func NewProducer(cfg config.Kafka) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.TasksTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, topic: cfg.TasksTopic}, nil
}

func (p *Producer) Publish(ctx context.Context, tasks ...*models.Task) error {
	records := make([]*kgo.Record, 0, len(tasks))
	for _, task := range tasks {
		key, value, err := encodeTask(task)
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{Topic: p.topic, Key: key, Value: value})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}

// Consumer reads a topic as part of a consumer group and commits offsets
// only after the handler accepted every record of a fetch.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
	retry  time.Duration
}

func NewConsumer(cfg config.Kafka, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.TasksTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger, retry: time.Second}, nil
}

func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, fe := range fetches.Errors() {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		var handled []*kgo.Record
		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			if err := c.handle(ctx, h, rec); err != nil {
				return err
			}
			handled = append(handled, rec)
		}
		if len(handled) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, handled...); err != nil && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "kafka offset commit failed", "error", err)
		}
	}
}

// handle retries rec until it succeeds or ctx ends.
func (c *Consumer) handle(ctx context.Context, h Handler, rec *kgo.Record) error {
	msg := &Message{
		Topic:     rec.Topic,
		Key:       rec.Key,
		Value:     rec.Value,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}
	for {
		err := h.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.logger.ErrorContext(ctx, "kafka handler failed, retrying",
			"topic", rec.Topic,
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

// EnsureTopics creates the configured topics, treating existing ones as
// success.
func EnsureTopics(ctx context.Context, cfg config.Kafka, replication int16) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return fmt.Errorf("create kafka admin client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, cfg.Partitions, replication, nil, cfg.TasksTopic, cfg.ActionsTopic)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resps.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
