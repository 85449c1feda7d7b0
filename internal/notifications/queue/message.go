// Package queue moves notification tasks from the commit outbox to the
// dispatcher, over Kafka when brokers are configured and an in-process
// channel otherwise. Delivery is at least once: handlers must tolerate
// redelivery.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"movetrack/internal/notifications/models"
)

// Message is one record read from a queue.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
}

// Handler processes one message. A returned error asks for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Publisher enqueues tasks in order.
type Publisher interface {
	Publish(ctx context.Context, tasks ...*models.Task) error
}

// Preparer is satisfied by the dispatcher.
type Preparer interface {
	Prepare(ctx context.Context, task models.Task) ([]*models.Notification, error)
}

// TaskHandler decodes notification tasks and hands them to the dispatcher.
type TaskHandler struct {
	preparer Preparer
	logger   *slog.Logger
}

func NewTaskHandler(preparer Preparer, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{preparer: preparer, logger: logger}
}

func (h *TaskHandler) Handle(ctx context.Context, msg *Message) error {
	var task models.Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		// poison message; retrying cannot help
		h.logger.WarnContext(ctx, "dropping undecodable notification task",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	if !task.Action.Valid() {
		h.logger.WarnContext(ctx, "dropping notification task with unknown action",
			"task_id", task.ID,
			"action", task.Action,
		)
		return nil
	}
	if _, err := h.preparer.Prepare(ctx, task); err != nil {
		return fmt.Errorf("prepare task %s: %w", task.ID, err)
	}
	return nil
}

func encodeTask(task *models.Task) (key, value []byte, err error) {
	value, err = json.Marshal(task)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	return []byte(task.Topic.String()), value, nil
}
