package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/metrics"
)

// Outbox is the commit-side task table.
type Outbox interface {
	PendingTasks(ctx context.Context, limit int) ([]*models.Task, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Relay copies committed tasks from the outbox to a Publisher. A crash
// between publish and mark republishes the batch; task ids keep that
// harmless downstream.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batch     int
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithRelayMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRelayBatch(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(outbox Outbox, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  500 * time.Millisecond,
		batch:     100,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
				}
				break
			}
			if n < r.batch {
				break
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce publishes one batch and returns its size.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	tasks, err := r.outbox.PendingTasks(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("load outbox: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	if err := r.publisher.Publish(ctx, tasks...); err != nil {
		return 0, fmt.Errorf("publish %d tasks: %w", len(tasks), err)
	}
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	r.metrics.AddOutboxPublished(len(tasks))
	r.logger.DebugContext(ctx, "outbox tasks published", "count", len(tasks))
	return len(tasks), nil
}
