package queue

import (
	"context"
	"log/slog"
	"time"

	"movetrack/internal/notifications/models"
)

// Channel is the in-process queue used when no brokers are configured.
type Channel struct {
	ch     chan *Message
	logger *slog.Logger
	retry  time.Duration
}

func NewChannel(size int, logger *slog.Logger) *Channel {
	return &Channel{ch: make(chan *Message, size), logger: logger, retry: 500 * time.Millisecond}
}

func (c *Channel) Publish(ctx context.Context, tasks ...*models.Task) error {
	for _, task := range tasks {
		key, value, err := encodeTask(task)
		if err != nil {
			return err
		}
		select {
		case c.ch <- &Message{Topic: "local", Key: key, Value: value}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Consume feeds messages to h until ctx is cancelled. A failed message is
// retried after a pause, holding back the messages behind it.
func (c *Channel) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.ch:
			for {
				err := h.Handle(ctx, msg)
				if err == nil {
					break
				}
				c.logger.ErrorContext(ctx, "queue handler failed, retrying",
					"key", string(msg.Key),
					"error", err,
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.retry):
				}
			}
		}
	}
}
