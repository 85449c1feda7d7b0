// Package app assembles the stores, runner and notification pipeline from
// configuration. Both the server and movetrackctl build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"movetrack/internal/events/feed"
	"movetrack/internal/events/runner"
	eventstore "movetrack/internal/events/store"
	"movetrack/internal/events/variants"
	"movetrack/internal/locations"
	"movetrack/internal/notifications/delivery"
	"movetrack/internal/notifications/dispatcher"
	"movetrack/internal/notifications/queue"
	notifystore "movetrack/internal/notifications/store"
	"movetrack/internal/notifications/subscriptions"
	"movetrack/internal/platform/config"
	"movetrack/internal/platform/database"
	"movetrack/internal/platform/metrics"
	"movetrack/internal/platform/redis"
)

// EventStore is the event log plus its notification outbox.
type EventStore interface {
	runner.Store
	queue.Outbox
}

type NotificationStore interface {
	dispatcher.NotificationStore
	delivery.Store
}

type SubscriptionStore interface {
	dispatcher.SubscriptionDirectory
	delivery.SubscriptionLookup
	subscriptions.Saver
}

// Stores groups every store the process uses. Without a database driver all
// of them live in memory.
type Stores struct {
	Events        EventStore
	Notifications NotificationStore
	Subscriptions SubscriptionStore
	Locations     locations.Store

	db *sql.DB
}

// OpenStores connects and migrates the configured database.
func OpenStores(ctx context.Context, cfg config.Database) (*Stores, error) {
	if cfg.Driver == "" {
		return &Stores{
			Events:        eventstore.NewInMemory(),
			Notifications: notifystore.NewInMemory(),
			Subscriptions: subscriptions.NewInMemory(),
			Locations:     locations.NewInMemory(),
		}, nil
	}

	db, dialect, err := database.Open(ctx, cfg.Driver, cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Stores{
		Events:        eventstore.NewSQL(db, dialect),
		Notifications: notifystore.NewSQL(db, dialect),
		Subscriptions: subscriptions.NewSQLStore(db, dialect),
		Locations:     locations.NewSQLStore(db),
		db:            db,
	}, nil
}

// Close releases the database connection, if any.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seed loads the configured subscription and location files.
func (s *Stores) Seed(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.LocationsFile != "" {
		n, err := locations.LoadSeed(ctx, cfg.LocationsFile, s.Locations)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "locations seeded", "count", n, "file", cfg.LocationsFile)
	}
	if cfg.SubscriptionsFile != "" {
		n, err := subscriptions.LoadSeed(ctx, cfg.SubscriptionsFile, s.Subscriptions)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "subscriptions seeded", "count", n, "file", cfg.SubscriptionsFile)
	}
	return nil
}

// Core is the event runner with the collaborators built alongside it.
type Core struct {
	Runner   *runner.Runner
	Resolver *locations.Resolver
	Lookup   *feed.RelationshipLookup

	closers []func()
}

// NewCore builds the runner. A Redis URL switches to the distributed lock
// and Kafka brokers route side effects to the external actions topic.
func NewCore(ctx context.Context, cfg config.Config, stores *Stores, m *metrics.Metrics, logger *slog.Logger) (*Core, error) {
	reg, err := variants.Default()
	if err != nil {
		return nil, fmt.Errorf("build variant registry: %w", err)
	}
	core := &Core{Resolver: locations.NewResolver(stores.Locations)}
	core.Lookup = feed.NewRelationshipLookup(reg, core.Resolver)

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithMetrics(m),
		runner.WithEffectHandler(variants.EffectCreateInNomis, runner.LogEffects(logger)),
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client != nil {
		opts = append(opts, runner.WithLocker(runner.NewRedisLocker(client,
			runner.WithLockTTL(cfg.Redis.LockTTL),
			runner.WithLockLogger(logger),
		)))
		core.closers = append(core.closers, func() { _ = client.Close() })
	}

	if len(cfg.Kafka.Brokers) > 0 {
		actions, err := queue.NewActionPublisher(cfg.Kafka)
		if err != nil {
			core.Close()
			return nil, err
		}
		opts = append(opts, runner.WithEffectHandler(variants.EffectCreateInNomis, actions.Handle))
		core.closers = append(core.closers, actions.Close)
	}

	core.Runner = runner.New(reg, stores.Events, core.Resolver, opts...)
	return core, nil
}

// Close waits for in-flight side effects, then releases clients.
func (c *Core) Close() {
	if c.Runner != nil {
		c.Runner.Wait()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// IgnoreCanceled maps context cancellation, the normal way background loops
// stop, to nil.
func IgnoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
