package app

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"movetrack/internal/notifications/delivery"
	"movetrack/internal/notifications/dispatcher"
	"movetrack/internal/notifications/models"
	"movetrack/internal/notifications/queue"
	"movetrack/internal/platform/config"
	"movetrack/internal/platform/metrics"
)

const channelBuffer = 256

type consumer interface {
	Consume(ctx context.Context, h queue.Handler) error
}

// Pipeline moves committed notification tasks to subscribers: the outbox
// relay publishes tasks, the consumer prepares notifications and the worker
// delivers them.
type Pipeline struct {
	Dispatcher *dispatcher.Dispatcher
	Relay      *queue.Relay
	Worker     *delivery.Worker

	consumer consumer
	handler  queue.Handler
	closers  []func()
}

// NewPipeline wires the notification pipeline. Kafka brokers select the
// Kafka transport, otherwise tasks travel over an in-process channel.
func NewPipeline(ctx context.Context, cfg config.Config, stores *Stores, core *Core, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{}
	p.Dispatcher = dispatcher.New(core.Runner, stores.Subscriptions, stores.Notifications,
		dispatcher.WithLogger(logger),
		dispatcher.WithMetrics(m),
	)
	p.handler = queue.NewTaskHandler(p.Dispatcher, logger)

	var publisher queue.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		// -1 leaves the replication factor to the broker default.
		if err := queue.EnsureTopics(ctx, cfg.Kafka, -1); err != nil {
			return nil, err
		}
		producer, err := queue.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, producer.Close)
		kc, err := queue.NewConsumer(cfg.Kafka, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, kc.Close)
		publisher, p.consumer = producer, kc
	} else {
		ch := queue.NewChannel(channelBuffer, logger)
		publisher, p.consumer = ch, ch
	}

	p.Relay = queue.NewRelay(stores.Events, publisher,
		queue.WithRelayLogger(logger),
		queue.WithRelayMetrics(m),
		queue.WithRelayInterval(cfg.Delivery.RelayInterval),
		queue.WithRelayBatch(cfg.Delivery.BatchSize),
	)

	client := &http.Client{Timeout: cfg.Delivery.Timeout}
	opts := []delivery.Option{
		delivery.WithLogger(logger),
		delivery.WithMetrics(m),
		delivery.WithRateLimit(cfg.Delivery.RatePerSecond, cfg.Delivery.Burst),
		delivery.WithBatch(cfg.Delivery.BatchSize, cfg.Delivery.MaxAttempts),
		delivery.WithPollInterval(cfg.Delivery.PollInterval),
		delivery.WithTimeout(cfg.Delivery.Timeout),
		delivery.WithBreaker(cfg.Delivery.BreakerThreshold, cfg.Delivery.BreakerCooldown),
		delivery.WithSender(models.TypeWebhook, delivery.NewWebhookSender(client)),
	}
	if cfg.Notify.ServiceID != "" {
		opts = append(opts, delivery.WithSender(models.TypeEmail, delivery.NewNotifyClient(cfg.Notify, client)))
	} else {
		logger.WarnContext(ctx, "email delivery disabled: no notify service id configured")
	}
	p.Worker = delivery.New(stores.Notifications, stores.Subscriptions, core.Runner, opts...)
	return p, nil
}

// Run runs the relay, the consumer and the delivery worker until ctx is
// cancelled or one of them fails.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return IgnoreCanceled(p.Relay.Run(ctx)) })
	g.Go(func() error { return IgnoreCanceled(p.consumer.Consume(ctx, p.handler)) })
	g.Go(func() error { return IgnoreCanceled(p.Worker.Run(ctx)) })
	return g.Wait()
}

func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}
