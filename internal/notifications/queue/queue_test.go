package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movetrack/internal/entities"
	evstore "movetrack/internal/events/store"
	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/logger"
	"movetrack/internal/platform/metrics"
	id "movetrack/pkg/domain"
)

type recordingPreparer struct {
	mu    sync.Mutex
	tasks []models.Task
	fails int
	seen  chan struct{}
}

func newRecordingPreparer() *recordingPreparer {
	return &recordingPreparer{seen: make(chan struct{}, 16)}
}

func (p *recordingPreparer) Prepare(_ context.Context, task models.Task) ([]*models.Notification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return nil, errors.New("database unavailable")
	}
	p.tasks = append(p.tasks, task)
	p.seen <- struct{}{}
	return nil, nil
}

func (p *recordingPreparer) wait(t *testing.T, n int) {
	t.Helper()
	for range n {
		select {
		case <-p.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("task was not prepared")
		}
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...*models.Task) error {
	return errors.New("broker down")
}

func moveTask(action models.Action) *models.Task {
	return models.NewTask(id.Ref{Kind: id.KindMove, ID: id.NewEntityID()}, action, time.Now().UTC())
}

func TestChannelDeliversInOrderAndRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := NewChannel(8, logger.Discard())
	ch.retry = time.Millisecond
	prep := newRecordingPreparer()
	prep.fails = 2

	done := make(chan error, 1)
	go func() { done <- ch.Consume(ctx, NewTaskHandler(prep, logger.Discard())) }()

	first, second := moveTask(models.ActionCreate), moveTask(models.ActionUpdateStatus)
	require.NoError(t, ch.Publish(ctx, first, second))
	prep.wait(t, 2)

	prep.mu.Lock()
	assert.Equal(t, first.ID, prep.tasks[0].ID)
	assert.Equal(t, second.ID, prep.tasks[1].ID)
	assert.Equal(t, models.ActionUpdateStatus, prep.tasks[1].Action)
	prep.mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTaskHandlerDropsPoisonMessages(t *testing.T) {
	prep := newRecordingPreparer()
	h := NewTaskHandler(prep, logger.Discard())

	assert.NoError(t, h.Handle(context.Background(), &Message{Value: []byte("{not json")}))
	assert.NoError(t, h.Handle(context.Background(), &Message{Value: []byte(`{"id":"6f1c1b7e-8a55-4a49-9a43-8b4b2d1c0e11","action":"explode"}`)}))
	assert.Empty(t, prep.tasks)
}

func TestRelayPublishesOutboxOnce(t *testing.T) {
	ctx := context.Background()
	outbox := evstore.NewInMemory()
	now := time.Date(2020, 1, 29, 10, 0, 0, 0, time.UTC)
	for range 3 {
		m := &entities.Move{ID: id.NewEntityID(), State: entities.MoveProposed}
		require.NoError(t, outbox.Create(ctx, m, models.NewTask(m.Ref(), models.ActionCreate, now), now))
	}

	ch := NewChannel(8, logger.Discard())
	m := metrics.New(prometheus.NewRegistry())
	relay := NewRelay(outbox, ch, WithRelayLogger(logger.Discard()), WithRelayMetrics(m), WithRelayBatch(2))

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, ch.ch, 3)
	assert.Equal(t, 3.0, promtest.ToFloat64(m.OutboxPublished))
}

func TestRelayKeepsTasksWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	outbox := evstore.NewInMemory()
	now := time.Now().UTC()
	m := &entities.Move{ID: id.NewEntityID(), State: entities.MoveProposed}
	require.NoError(t, outbox.Create(ctx, m, models.NewTask(m.Ref(), models.ActionCreate, now), now))

	relay := NewRelay(outbox, failingPublisher{}, WithRelayLogger(logger.Discard()))
	_, err := relay.RunOnce(ctx)
	require.Error(t, err)

	pending, err := outbox.PendingTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
