// Package httptransport is the HTTP intake and operator surface. Handlers
// only translate between HTTP and the runner.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movetrack/internal/events/feed"
	"movetrack/internal/ratelimit"
	"movetrack/pkg/platform/middleware/admin"
	authmw "movetrack/pkg/platform/middleware/auth"
	"movetrack/pkg/platform/middleware/metadata"
	"movetrack/pkg/platform/middleware/requesttime"
)

// Deps are the collaborators the router wires. A nil Gatherer leaves
// /metrics unmounted and a nil IntakeLimiter leaves intake unthrottled.
type Deps struct {
	Events        EventService
	Ops           OpsService
	Lookup        feed.Lookup
	Tokens        authmw.Validator
	OpsTokenHash  string
	IntakeLimiter *ratelimit.Limiter
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.RequestMetadata)
	r.Use(metadata.AccessLog(d.Logger))
	r.Use(metadata.Recoverer(d.Logger))
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.RequireSupplier(d.Tokens, d.Logger))
		if d.IntakeLimiter != nil {
			r.Use(d.IntakeLimiter.Middleware)
		}
		NewEventsHandler(d.Events, d.Lookup, d.Logger).Register(r)
	})
	r.Route("/ops", func(r chi.Router) {
		r.Use(admin.RequireOpsToken(d.OpsTokenHash, d.Logger))
		NewOpsHandler(d.Ops, d.Logger).Register(r)
	})
	return r
}
