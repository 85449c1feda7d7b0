// Package dispatcher turns a notification task into per-subscription
// notification records. It never performs a network call: delivery is the
// delivery workers' concern.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"movetrack/internal/entities"
	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/metrics"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

// TopicLoader returns the current state of a topic.
type TopicLoader interface {
	Load(ctx context.Context, ref id.Ref) (entities.Eventable, error)
}

type SubscriptionDirectory interface {
	ForSupplier(ctx context.Context, supplierID id.SupplierID) ([]*models.Subscription, error)
}

type NotificationStore interface {
	// Create returns false when the dedup key already exists.
	Create(ctx context.Context, n *models.Notification) (bool, error)
}

// emailStatuses are the move statuses worth an email.
var emailStatuses = map[string]bool{
	entities.MoveRequested: true,
	entities.MoveBooked:    true,
	entities.MoveInTransit: true,
	entities.MoveCancelled: true,
}

type Dispatcher struct {
	topics        TopicLoader
	subscriptions SubscriptionDirectory
	store         NotificationStore
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(topics TopicLoader, subscriptions SubscriptionDirectory, store NotificationStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		topics:        topics,
		subscriptions: subscriptions,
		store:         store,
		logger:        slog.Default(),
		tracer:        otel.Tracer("movetrack/internal/notifications/dispatcher"),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Prepare creates the notifications for one task and returns those it
// created. A task seen before creates nothing new.
func (d *Dispatcher) Prepare(ctx context.Context, task models.Task) ([]*models.Notification, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.Prepare", trace.WithAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("topic.type", string(task.Topic.Kind)),
		attribute.String("topic.id", task.Topic.ID.String()),
		attribute.String("action", string(task.Action)),
	))
	defer span.End()

	created, err := d.prepare(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("notifications.created", len(created)))
	return created, nil
}

func (d *Dispatcher) prepare(ctx context.Context, task models.Task) ([]*models.Notification, error) {
	if !task.Action.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown notification action %q", task.Action))
	}
	topic, err := d.topics.Load(ctx, task.Topic)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			d.logger.WarnContext(ctx, "notification topic not found, nothing to prepare",
				"task_id", task.ID, "topic", task.Topic.String())
			return nil, nil
		}
		return nil, err
	}

	now := d.now()
	emailOK := shouldEmail(topic, entities.DateOf(now))
	eventType := models.EventType(task.Topic.Kind, task.Action)

	var created []*models.Notification
	for _, supplierID := range suppliersOf(topic) {
		subs, err := d.subscriptions.ForSupplier(ctx, supplierID)
		if err != nil {
			return created, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subscriptions")
		}
		for _, sub := range subs {
			if !sub.Active() {
				continue
			}
			// webhooks hear about every change, historic moves included
			if sub.CallbackURL != "" {
				n, err := d.create(ctx, task, sub, models.TypeWebhook, eventType, now)
				if err != nil {
					return created, err
				}
				if n != nil {
					created = append(created, n)
				}
			}
			if sub.EmailAddress != "" && emailOK {
				n, err := d.create(ctx, task, sub, models.TypeEmail, eventType, now)
				if err != nil {
					return created, err
				}
				if n != nil {
					created = append(created, n)
				}
			}
		}
	}

	d.logger.InfoContext(ctx, "notifications prepared",
		"task_id", task.ID,
		"topic", task.Topic.String(),
		"event_type", eventType,
		"created", len(created),
	)
	return created, nil
}

func (d *Dispatcher) create(ctx context.Context, task models.Task, sub *models.Subscription, t models.Type, eventType string, now time.Time) (*models.Notification, error) {
	n := &models.Notification{
		ID:             id.NewNotificationID(),
		SubscriptionID: sub.ID,
		Topic:          task.Topic,
		Type:           t,
		EventType:      eventType,
		DedupKey:       models.DedupKey(task.ID, sub.ID, t),
		CreatedAt:      now.UTC().Truncate(time.Microsecond),
	}
	ok, err := d.store.Create(ctx, n)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notification")
	}
	if !ok {
		d.logger.DebugContext(ctx, "notification already prepared",
			"dedup_key", n.DedupKey)
		return nil, nil
	}
	d.metrics.IncrementNotifications(string(t))
	return n, nil
}

// suppliersOf lists the distinct suppliers attributed to topic.
func suppliersOf(topic entities.Eventable) []id.SupplierID {
	supplied, ok := topic.(entities.Supplied)
	if !ok {
		return nil
	}
	seen := map[id.SupplierID]bool{}
	var out []id.SupplierID
	for _, s := range supplied.Suppliers() {
		if s.IsNil() || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// shouldEmail applies the email rule: only moves that are requested, booked,
// in transit or cancelled, and whose dates have not entirely passed.
func shouldEmail(topic entities.Eventable, today entities.Date) bool {
	m, ok := topic.(*entities.Move)
	if !ok {
		return false
	}
	return emailStatuses[m.State] && m.IsCurrent(today)
}
