package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"movetrack/internal/events/runner"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/httputil"
	"movetrack/pkg/requestcontext"
)

// OpsService exposes the read-only consistency checks operators run.
type OpsService interface {
	DryRun(ctx context.Context, ref id.Ref) runner.DryRunReport
	Verify(ctx context.Context, ref id.Ref) (*runner.Verification, error)
}

type OpsHandler struct {
	service OpsService
	logger  *slog.Logger
}

func NewOpsHandler(service OpsService, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{service: service, logger: logger}
}

func (h *OpsHandler) Register(r chi.Router) {
	r.Get("/{kind}/{id}/dry-run", h.handleDryRun)
	r.Post("/{kind}/{id}/replay", h.handleReplay)
}

// handleDryRun always answers with the report. A run that could not
// complete is reported with the status of its error.
func (h *OpsHandler) handleDryRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := refFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report := h.service.DryRun(ctx, ref)
	if report.Err != nil {
		httputil.WriteError(w, report.Err)
		return
	}
	h.logger.InfoContext(ctx, "dry run",
		"eventable_type", ref.Kind,
		"eventable_id", ref.ID,
		"valid", report.Valid,
		"matches_persisted", report.MatchesPersisted,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *OpsHandler) handleReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := refFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.Verify(ctx, ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}
