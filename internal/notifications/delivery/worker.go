// Package delivery sends prepared notifications to subscribers. Workers poll
// for undelivered rows, so a crash between preparation and delivery only
// delays a notification.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"movetrack/internal/entities"
	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/metrics"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/platform/circuit"
	"movetrack/pkg/platform/sentinel"
)

type Store interface {
	PendingDeliveries(ctx context.Context, maxAttempts, limit int) ([]*models.Notification, error)
	MarkDelivered(ctx context.Context, nID id.NotificationID, at time.Time) error
	RecordFailure(ctx context.Context, nID id.NotificationID) error
}

type SubscriptionLookup interface {
	Get(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error)
}

type TopicLoader interface {
	Load(ctx context.Context, ref id.Ref) (entities.Eventable, error)
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

var errInactive = errors.New("subscription is disabled or discarded")

type Worker struct {
	store         Store
	subscriptions SubscriptionLookup
	topics        TopicLoader
	senders       map[models.Type]Sender

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	limiter *rate.Limiter

	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	timeout          time.Duration
	breakerThreshold int
	breakerCooldown  time.Duration

	mu       sync.Mutex
	breakers map[id.SubscriptionID]*circuit.Breaker
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithSender registers the sender for a notification type.
func WithSender(t models.Type, s Sender) Option {
	return func(w *Worker) { w.senders[t] = s }
}

// WithRateLimit caps outbound sends per second across all subscribers. A
// non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(w *Worker) {
		if perSecond <= 0 {
			w.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

func WithBatch(size, maxAttempts int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithTimeout bounds each send.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithBreaker opens a subscription's circuit after threshold consecutive
// failures and probes it again after cooldown.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(w *Worker) {
		w.breakerThreshold = threshold
		w.breakerCooldown = cooldown
	}
}

func New(store Store, subscriptions SubscriptionLookup, topics TopicLoader, opts ...Option) *Worker {
	w := &Worker{
		store:            store,
		subscriptions:    subscriptions,
		topics:           topics,
		senders:          map[models.Type]Sender{},
		logger:           slog.Default(),
		tracer:           otel.Tracer("movetrack/internal/notifications/delivery"),
		now:              time.Now,
		limiter:          rate.NewLimiter(rate.Inf, 0),
		batchSize:        50,
		maxAttempts:      10,
		pollInterval:     2 * time.Second,
		timeout:          10 * time.Second,
		breakerThreshold: 5,
		breakerCooldown:  30 * time.Second,
		breakers:         map[id.SubscriptionID]*circuit.Breaker{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run polls for pending notifications until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "delivery batch failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce attempts one batch and returns how many notifications were
// delivered. Individual send failures are recorded, not returned.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.store.PendingDeliveries(ctx, w.maxAttempts, w.batchSize)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending deliveries")
	}
	delivered := 0
	for _, n := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			return delivered, err
		}
		ok, err := w.Deliver(ctx, n)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// Deliver sends one notification and records the outcome. The error is
// non-nil only when the outcome itself could not be recorded.
func (w *Worker) Deliver(ctx context.Context, n *models.Notification) (bool, error) {
	ctx, span := w.tracer.Start(ctx, "delivery.Deliver", trace.WithAttributes(
		attribute.String("notification.id", n.ID.String()),
		attribute.String("notification.type", string(n.Type)),
		attribute.String("subscription.id", n.SubscriptionID.String()),
		attribute.Int("delivery.attempts", n.DeliveryAttempts),
	))
	defer span.End()

	log := w.logger.With(
		"notification_id", n.ID,
		"subscription_id", n.SubscriptionID,
		"notification_type", n.Type,
		"event_type", n.EventType,
	)

	breaker := w.breakerFor(n.SubscriptionID)
	if !breaker.Allow() {
		w.metrics.IncrementDelivery(string(n.Type), outcomeSkipped)
		span.SetAttributes(attribute.Bool("circuit.open", true))
		log.DebugContext(ctx, "subscription circuit open, delivery deferred")
		return false, nil
	}

	sendErr := w.send(ctx, n)
	if sendErr == nil {
		if err := w.store.MarkDelivered(ctx, n.ID, w.now()); err != nil {
			span.RecordError(err)
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification delivered")
		}
		if _, change := breaker.RecordSuccess(); change.Closed {
			log.InfoContext(ctx, "subscription circuit closed")
		}
		w.metrics.IncrementDelivery(string(n.Type), outcomeDelivered)
		log.InfoContext(ctx, "notification delivered", "attempt", n.DeliveryAttempts+1)
		return true, nil
	}

	span.RecordError(sendErr)
	span.SetStatus(codes.Error, sendErr.Error())
	if err := w.store.RecordFailure(ctx, n.ID); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record delivery failure")
	}
	if _, change := breaker.RecordFailure(); change.Opened {
		log.WarnContext(ctx, "subscription circuit opened", "cooldown", w.breakerCooldown)
	}
	w.metrics.IncrementDelivery(string(n.Type), outcomeFailed)
	level := slog.LevelWarn
	if n.DeliveryAttempts+1 >= w.maxAttempts {
		level = slog.LevelError
	}
	log.Log(ctx, level, "notification delivery failed",
		"attempt", n.DeliveryAttempts+1,
		"max_attempts", w.maxAttempts,
		"error", sendErr,
	)
	return false, nil
}

func (w *Worker) send(ctx context.Context, n *models.Notification) error {
	sender, ok := w.senders[n.Type]
	if !ok {
		return dErrors.New(dErrors.CodeInternal, "no sender for notification type "+string(n.Type))
	}
	sub, err := w.subscriptions.Get(ctx, n.SubscriptionID)
	if err != nil {
		return err
	}
	if !sub.Active() {
		return errInactive
	}

	var topic entities.Eventable
	topic, err = w.topics.Load(ctx, n.Topic)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		topic = nil
	}
	msg, err := newMessage(n, sub, topic, w.now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return sender.Send(ctx, msg)
}

func (w *Worker) breakerFor(subID id.SubscriptionID) *circuit.Breaker {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.breakers[subID]
	if !ok {
		b = circuit.New("subscription:"+subID.String(),
			circuit.WithFailureThreshold(w.breakerThreshold),
			circuit.WithCooldown(w.breakerCooldown),
			circuit.WithClock(w.now),
		)
		w.breakers[subID] = b
	}
	return b
}
