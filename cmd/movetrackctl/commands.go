package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"movetrack/internal/app"
	"movetrack/internal/events/feed"
	jwttoken "movetrack/internal/jwt_token"
	"movetrack/internal/notifications/subscriptions"
	"movetrack/internal/platform/config"
	"movetrack/internal/platform/logger"
	"movetrack/internal/platform/metrics"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/middleware/admin"
)

// env is what every store-backed command needs.
type env struct {
	cfg    config.Config
	log    *slog.Logger
	stores *app.Stores
	core   *app.Core
}

func (e *env) close() {
	if e.core != nil {
		e.core.Close()
	}
	if e.stores != nil {
		_ = e.stores.Close()
	}
}

// loadConfig is swapped in tests.
var loadConfig = config.FromEnv

func openEnv(ctx context.Context, stderr io.Writer) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	e := &env{cfg: cfg, log: logger.NewWithWriter(stderr, cfg.LogLevel)}
	e.stores, err = app.OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := e.stores.Seed(ctx, cfg, e.log); err != nil {
		e.close()
		return nil, err
	}
	e.core, err = app.NewCore(ctx, cfg, e.stores, metrics.New(prometheus.NewRegistry()), e.log)
	if err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "movetrackctl",
		Short:         "Operate a movetrack event store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		dryRunCmd(),
		replayCmd(),
		exportFeedCmd(),
		hashTokenCmd(),
		tokenCmd(),
		seedSubscriptionsCmd(),
	)
	return cmd
}

func dryRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run REF",
		Short: "Re-apply an eventable's events in memory and report validity",
		Long: `REF is <collection>/<id> (moves/1b4e...) or <Kind>:<id> (Move:1b4e...).
Nothing is written and no side effect runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			report := e.core.Runner.DryRun(cmd.Context(), ref)
			if report.Err != nil {
				return report.Err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid || !report.MatchesPersisted {
				return fmt.Errorf("%s: valid=%t matches_persisted=%t", ref, report.Valid, report.MatchesPersisted)
			}
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay REF",
		Short: "Replay an eventable and compare the result with persisted state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			v, err := e.core.Runner.Verify(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if !v.Matches {
				return fmt.Errorf("%s: replayed state differs from persisted state", ref)
			}
			return nil
		},
	}
}

func exportFeedCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "export-feed REF...",
		Short: "Export event feeds as JSON lines to the configured S3 bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]id.Ref, 0, len(args))
			for _, arg := range args {
				ref, err := parseRef(arg)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			if e.cfg.Export.Bucket == "" {
				return fmt.Errorf("no export bucket configured (EXPORT_BUCKET)")
			}

			client, err := feed.NewS3Client(cmd.Context(), e.cfg.Export)
			if err != nil {
				return err
			}
			exporter := feed.NewExporter(client, e.core.Runner, e.cfg.Export,
				feed.WithLookup(e.core.Lookup),
				feed.WithConcurrency(concurrency),
				feed.WithLogger(e.log),
			)
			res, err := exporter.Export(cmd.Context(), refs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d events in %d objects to s3://%s/%s\n",
				res.Events, res.Objects, e.cfg.Export.Bucket, e.cfg.Export.Prefix)
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "objects uploaded in parallel")
	return cmd
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token TOKEN",
		Short: "Print the bcrypt hash to configure as OPS_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := admin.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		supplier string
		subject  string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a supplier bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			supplierID, err := id.ParseSupplierID(supplier)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateSupplierToken(supplierID, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier id (required)")
	cmd.Flags().StringVar(&subject, "subject", "", "caller recorded as created_by")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("supplier")
	return cmd
}

func seedSubscriptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-subscriptions FILE",
		Short: "Upsert subscriptions from a YAML file into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			stores, err := app.OpenStores(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer stores.Close()

			n, err := subscriptions.LoadSeed(cmd.Context(), args[0], stores.Subscriptions)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d subscriptions\n", n)
			return nil
		},
	}
}

// parseRef accepts "moves/<id>" or "Move:<id>".
func parseRef(s string) (id.Ref, error) {
	var (
		kind id.EventableKind
		raw  string
		err  error
	)
	if seg, rest, ok := strings.Cut(s, "/"); ok {
		kind, err = id.ParseKindSegment(seg)
		raw = rest
	} else if name, rest, ok := strings.Cut(s, ":"); ok {
		kind, err = id.ParseEventableKind(name)
		raw = rest
	} else {
		return id.Ref{}, fmt.Errorf("invalid reference %q: want <collection>/<id> or <Kind>:<id>", s)
	}
	if err != nil {
		return id.Ref{}, err
	}
	entityID, err := id.ParseEntityID(raw)
	if err != nil {
		return id.Ref{}, err
	}
	return id.Ref{Kind: kind, ID: entityID}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
