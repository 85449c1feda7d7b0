package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"movetrack/internal/entities"
	"movetrack/internal/events/feed"
	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/platform/httputil"
	"movetrack/pkg/requestcontext"
)

// EventService records and lists events.
type EventService interface {
	Apply(ctx context.Context, ref id.Ref, intent models.Intent) (entities.Eventable, *models.Event, error)
	Events(ctx context.Context, ref id.Ref) ([]*models.Event, error)
}

// RecordEventRequest is the intake body. RecordedAt defaults to the time the
// request arrived.
type RecordEventRequest struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	RecordedAt *time.Time     `json:"recorded_at,omitempty"`
	Notes      string         `json:"notes"`
	Details    map[string]any `json:"details"`
}

func (r *RecordEventRequest) validate() error {
	fields := map[string]string{}
	if r.Type == "" {
		fields["type"] = "is required"
	}
	if r.OccurredAt.IsZero() {
		fields["occurred_at"] = "is required"
	}
	if len(fields) > 0 {
		return dErrors.WithFields(dErrors.CodeValidation, "invalid event", fields)
	}
	return nil
}

// RecordEventResponse carries the stored event and the eventable it changed.
type RecordEventResponse struct {
	Event     feed.Record        `json:"event"`
	Eventable entities.Eventable `json:"eventable"`
}

type EventsResponse struct {
	Events []feed.Record `json:"events"`
}

type EventsHandler struct {
	service EventService
	lookup  feed.Lookup
	logger  *slog.Logger
}

func NewEventsHandler(service EventService, lookup feed.Lookup, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{service: service, lookup: lookup, logger: logger}
}

// Register mounts the intake routes on r. Authentication is the caller's
// concern.
func (h *EventsHandler) Register(r chi.Router) {
	r.Post("/{kind}/{id}/events", h.handleRecord)
	r.Get("/{kind}/{id}/events", h.handleList)
}

func (h *EventsHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := refFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req RecordEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	recordedAt := requestcontext.Now(ctx)
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}
	updated, ev, err := h.service.Apply(ctx, ref, models.Intent{
		Variant:    req.Type,
		OccurredAt: req.OccurredAt,
		RecordedAt: recordedAt,
		CreatedBy:  requestcontext.Subject(ctx),
		Notes:      req.Notes,
		Details:    req.Details,
		SupplierID: requestcontext.SupplierID(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := feed.ForFeed(ctx, ev, h.lookup)
	if err != nil {
		h.logger.WarnContext(ctx, "relationship expansion failed",
			"event_id", ev.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		rec, _ = feed.ForFeed(ctx, ev, nil)
	}
	httputil.WriteJSON(w, http.StatusCreated, RecordEventResponse{Event: rec, Eventable: updated})
}

func (h *EventsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := refFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.Events(ctx, ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := EventsResponse{Events: make([]feed.Record, 0, len(events))}
	for _, ev := range events {
		rec, err := feed.ForFeed(ctx, ev, h.lookup)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render events"))
			return
		}
		resp.Events = append(resp.Events, rec)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// refFromPath parses /{kind}/{id} where kind is the plural collection name,
// e.g. /moves/<uuid>.
func refFromPath(r *http.Request) (id.Ref, error) {
	kind, err := id.ParseKindSegment(chi.URLParam(r, "kind"))
	if err != nil {
		return id.Ref{}, err
	}
	entityID, err := id.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		return id.Ref{}, err
	}
	return id.Ref{Kind: kind, ID: entityID}, nil
}
