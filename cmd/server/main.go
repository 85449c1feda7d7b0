package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"movetrack/internal/app"
	jwttoken "movetrack/internal/jwt_token"
	"movetrack/internal/platform/config"
	"movetrack/internal/platform/httpserver"
	"movetrack/internal/platform/logger"
	"movetrack/internal/platform/metrics"
	"movetrack/internal/ratelimit"
	httptransport "movetrack/internal/transport/http"
)

// main wires the stores, the event runner, the notification pipeline and
// the HTTP surface, then runs them until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "movetrack: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer stores.Close()
	if err := stores.Seed(ctx, cfg, log); err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	core, err := app.NewCore(ctx, cfg, stores, m, log)
	if err != nil {
		return err
	}
	defer core.Close()

	pipeline, err := app.NewPipeline(ctx, cfg, stores, core, m, log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httptransport.NewRouter(httptransport.Deps{
		Events:       core.Runner,
		Ops:          core.Runner,
		Lookup:       core.Lookup,
		Tokens:       jwttoken.NewJWTServiceAdapter(tokens),
		OpsTokenHash: cfg.Auth.OpsTokenHash,
		IntakeLimiter: ratelimit.New(cfg.Server.IntakeRatePerSecond, cfg.Server.IntakeBurst,
			ratelimit.WithLogger(log),
		),
		Gatherer: prometheus.DefaultGatherer,
		Logger:   log,
	})
	srv := httpserver.New(cfg.Server, router)

	log.InfoContext(ctx, "starting movetrack",
		"addr", cfg.Server.Addr,
		"database", cfg.Database.Driver,
		"kafka", len(cfg.Kafka.Brokers) > 0,
		"redis_lock", cfg.Redis.URL != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log) })
	g.Go(func() error { return pipeline.Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("movetrack stopped")
	return nil
}
