package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"movetrack/internal/entities"
	"movetrack/internal/notifications/models"
	nstore "movetrack/internal/notifications/store"
	"movetrack/internal/notifications/subscriptions"
	"movetrack/internal/platform/logger"
	"movetrack/internal/platform/metrics"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

type topicMap map[id.Ref]entities.Eventable

func (m topicMap) Load(_ context.Context, ref id.Ref) (entities.Eventable, error) {
	e, ok := m[ref]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "not found")
	}
	return e, nil
}

type recordingSender struct {
	mu   sync.Mutex
	fail error
	sent []Message
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.fail
}

type WorkerSuite struct {
	suite.Suite
	ctx      context.Context
	store    *nstore.InMemory
	subs     *subscriptions.InMemory
	topics   topicMap
	webhooks *recordingSender
	emails   *recordingSender
	metrics  *metrics.Metrics
	now      time.Time
	worker   *Worker
	move     *entities.Move
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = nstore.NewInMemory()
	s.subs = subscriptions.NewInMemory()
	s.topics = topicMap{}
	s.webhooks = &recordingSender{}
	s.emails = &recordingSender{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2020, 1, 29, 10, 0, 0, 0, time.UTC)
	s.move = &entities.Move{ID: id.NewEntityID(), State: entities.MoveBooked}
	s.topics[s.move.Ref()] = s.move
	s.worker = s.newWorker()
}

func (s *WorkerSuite) newWorker(opts ...Option) *Worker {
	base := []Option{
		WithLogger(logger.Discard()),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
		WithSender(models.TypeWebhook, s.webhooks),
		WithSender(models.TypeEmail, s.emails),
		WithBatch(10, 3),
		WithBreaker(100, time.Minute),
	}
	return New(s.store, s.subs, s.topics, append(base, opts...)...)
}

func (s *WorkerSuite) subscription(enabled bool) *models.Subscription {
	sub := &models.Subscription{
		ID:           id.NewSubscriptionID(),
		CallbackURL:  "https://serco.example/hook",
		EmailAddress: "ops@serco.example",
		Enabled:      enabled,
	}
	s.Require().NoError(s.subs.Save(s.ctx, sub))
	return sub
}

func (s *WorkerSuite) notification(sub *models.Subscription, t models.Type, topic id.Ref) *models.Notification {
	n := &models.Notification{
		ID:             id.NewNotificationID(),
		SubscriptionID: sub.ID,
		Topic:          topic,
		Type:           t,
		EventType:      "update_move_status",
		DedupKey:       id.NewNotificationID().String(),
		CreatedAt:      s.now,
	}
	created, err := s.store.Create(s.ctx, n)
	s.Require().NoError(err)
	s.Require().True(created)
	return n
}

func (s *WorkerSuite) reload(n *models.Notification) *models.Notification {
	all, err := s.store.ForTopic(s.ctx, n.Topic)
	s.Require().NoError(err)
	for _, got := range all {
		if got.ID == n.ID {
			return got
		}
	}
	s.FailNow("notification vanished")
	return nil
}

func (s *WorkerSuite) TestDeliversByType() {
	sub := s.subscription(true)
	hook := s.notification(sub, models.TypeWebhook, s.move.Ref())
	mail := s.notification(sub, models.TypeEmail, s.move.Ref())

	delivered, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, delivered)

	s.Require().Len(s.webhooks.sent, 1)
	s.Require().Len(s.emails.sent, 1)
	s.Equal(hook.ID, s.webhooks.sent[0].Notification.ID)
	s.Equal(mail.ID, s.emails.sent[0].Notification.ID)
	s.NotEmpty(s.webhooks.sent[0].Payload.Data.Attributes)

	got := s.reload(hook)
	s.True(got.Delivered())
	s.Equal(s.now, *got.DeliveredAt)
	s.Equal(1, got.DeliveryAttempts)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Deliveries.WithLabelValues("webhook", outcomeDelivered)))

	again, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(again, "delivered notifications are not polled again")
}

func (s *WorkerSuite) TestFailuresCountAttemptsUpToMax() {
	s.webhooks.fail = errors.New("connection refused")
	sub := s.subscription(true)
	n := s.notification(sub, models.TypeWebhook, s.move.Ref())

	for range 5 {
		_, err := s.worker.RunOnce(s.ctx)
		s.Require().NoError(err)
	}

	got := s.reload(n)
	s.False(got.Delivered())
	s.Equal(3, got.DeliveryAttempts, "polling stops at max attempts")
	s.Len(s.webhooks.sent, 3)
	s.Equal(3.0, promtest.ToFloat64(s.metrics.Deliveries.WithLabelValues("webhook", outcomeFailed)))
}

func (s *WorkerSuite) TestInactiveSubscriptionIsAFailure() {
	sub := s.subscription(false)
	n := s.notification(sub, models.TypeWebhook, s.move.Ref())

	_, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)

	s.Empty(s.webhooks.sent)
	s.Equal(1, s.reload(n).DeliveryAttempts)
}

func (s *WorkerSuite) TestVanishedTopicStillDelivers() {
	sub := s.subscription(true)
	gone := id.Ref{Kind: id.KindMove, ID: id.NewEntityID()}
	s.notification(sub, models.TypeWebhook, gone)

	delivered, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, delivered)
	s.Empty(s.webhooks.sent[0].Payload.Data.Attributes)
}

func (s *WorkerSuite) TestOpenCircuitDefersWithoutSpendingAttempts() {
	s.webhooks.fail = errors.New("503")
	s.worker = s.newWorker(WithBreaker(2, time.Minute), WithBatch(10, 10))
	sub := s.subscription(true)
	first := s.notification(sub, models.TypeWebhook, s.move.Ref())
	second := s.notification(sub, models.TypeWebhook, s.move.Ref())
	third := s.notification(sub, models.TypeWebhook, s.move.Ref())

	_, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)

	s.Len(s.webhooks.sent, 2)
	s.Equal(1, s.reload(first).DeliveryAttempts)
	s.Equal(1, s.reload(second).DeliveryAttempts)
	s.Equal(0, s.reload(third).DeliveryAttempts)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Deliveries.WithLabelValues("webhook", outcomeSkipped)))

	s.webhooks.fail = nil
	s.now = s.now.Add(2 * time.Minute)
	delivered, err := s.worker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, delivered, "a successful probe closes the circuit")
}

func (s *WorkerSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.newWorker(WithPollInterval(time.Millisecond)).Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("worker did not stop")
	}
}
