package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/runner"
	"movetrack/internal/ratelimit"
	"movetrack/internal/transport/http/mocks"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/platform/middleware/admin"
	authmw "movetrack/pkg/platform/middleware/auth"
	"movetrack/pkg/testutil"
)

//go:generate mockgen -source=handlers_events.go -destination=mocks/events-mocks.go -package=mocks EventService
//go:generate mockgen -source=handlers_ops.go -destination=mocks/ops-mocks.go -package=mocks OpsService

const (
	supplierToken = "supplier-token"
	opsToken      = "ops-token"
)

type staticTokens struct {
	claims *authmw.SupplierClaims
}

func (s staticTokens) ValidateToken(token string) (*authmw.SupplierClaims, error) {
	if token != supplierToken {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type HandlerSuite struct {
	suite.Suite
	opsHash  string
	supplier id.SupplierID
	moveID   id.EntityID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupSuite() {
	hash, err := admin.HashToken(opsToken)
	s.Require().NoError(err)
	s.opsHash = hash
	s.supplier = id.SupplierID(uuid.New())
	s.moveID = id.NewEntityID()
}

func (s *HandlerSuite) newRouter(t *testing.T) (*mocks.MockEventService, *mocks.MockOpsService, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventService(ctrl)
	ops := mocks.NewMockOpsService(ctrl)
	router := NewRouter(Deps{
		Events:       events,
		Ops:          ops,
		Tokens:       staticTokens{claims: &authmw.SupplierClaims{SupplierID: s.supplier, Subject: "serco"}},
		OpsTokenHash: s.opsHash,
		Gatherer:     prometheus.NewRegistry(),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return events, ops, router
}

func (s *HandlerSuite) eventsPath() string {
	return "/api/v1/moves/" + s.moveID.String() + "/events"
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+supplierToken)
	return req
}

func (s *HandlerSuite) storedEvent(ref id.Ref, intent models.Intent) *models.Event {
	return &models.Event{
		ID:         id.NewEventID(),
		Eventable:  ref,
		Variant:    models.Qualify(intent.Variant),
		OccurredAt: intent.OccurredAt,
		RecordedAt: intent.RecordedAt,
		CreatedBy:  intent.CreatedBy,
		Notes:      intent.Notes,
		Details:    intent.Details,
		SupplierID: intent.SupplierID,
		Seq:        1,
	}
}

func (s *HandlerSuite) TestRecordEvent() {
	occurred := time.Date(2020, 1, 29, 9, 0, 0, 0, time.UTC)

	s.T().Run("records the event with token attribution - 201", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		var got models.Intent
		events.EXPECT().Apply(gomock.Any(), id.Ref{Kind: id.KindMove, ID: s.moveID}, gomock.Any()).
			DoAndReturn(func(_ context.Context, ref id.Ref, intent models.Intent) (entities.Eventable, *models.Event, error) {
				got = intent
				return &entities.Move{ID: s.moveID, State: entities.MoveRequested}, s.storedEvent(ref, intent), nil
			})

		before := time.Now().UTC().Add(-time.Second)
		req := s.authed(testutil.NewJSONRequest(t, http.MethodPost, s.eventsPath(), RecordEventRequest{
			Type:       "MoveApprove",
			OccurredAt: occurred,
			Notes:      "approved by PMU",
			Details:    map[string]any{"date": "2020-01-30"},
		}))
		rr := testutil.DoRequest(router, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "MoveApprove", got.Variant)
		assert.Equal(t, "serco", got.CreatedBy)
		assert.Equal(t, s.supplier, got.SupplierID)
		assert.True(t, got.RecordedAt.After(before), "recorded_at defaults to request time")

		resp := testutil.UnmarshalResponse[struct {
			Event     map[string]any `json:"event"`
			Eventable map[string]any `json:"eventable"`
		}](t, rr)
		assert.Equal(t, "MoveApprove", resp.Event["type"])
		assert.Equal(t, s.supplier.String(), resp.Event["supplier"])
		assert.Equal(t, "requested", resp.Eventable["status"])
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	s.T().Run("explicit recorded_at is kept", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		recorded := occurred.Add(time.Hour)
		events.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ref id.Ref, intent models.Intent) (entities.Eventable, *models.Event, error) {
				assert.True(t, recorded.Equal(intent.RecordedAt))
				return &entities.Move{ID: s.moveID, State: entities.MoveRequested}, s.storedEvent(ref, intent), nil
			})

		req := s.authed(testutil.NewJSONRequest(t, http.MethodPost, s.eventsPath(), RecordEventRequest{
			Type: "MoveApprove", OccurredAt: occurred, RecordedAt: &recorded,
		}))
		assert.Equal(t, http.StatusCreated, testutil.DoRequest(router, req).Code)
	})

	s.T().Run("missing token - 401", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		events.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, s.eventsPath(), RecordEventRequest{}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	s.T().Run("malformed body - 400", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		events.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, s.authed(testutil.NewRequestWithBody(t, http.MethodPost, s.eventsPath(), "{bad-json")))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	s.T().Run("missing type and occurred_at - 400 with fields", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		events.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, s.authed(testutil.NewRequestWithBody(t, http.MethodPost, s.eventsPath(), `{"notes":"x"}`)))
		resp := testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		assert.Contains(t, resp.Fields, "type")
		assert.Contains(t, resp.Fields, "occurred_at")
	})

	s.T().Run("unknown collection - 404", func(t *testing.T) {
		_, _, router := s.newRouter(t)
		path := "/api/v1/widgets/" + s.moveID.String() + "/events"
		rr := testutil.DoRequest(router, s.authed(testutil.NewJSONRequest(t, http.MethodPost, path, RecordEventRequest{})))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	s.T().Run("domain rejections keep their status", func(t *testing.T) {
		tests := map[string]struct {
			err    error
			status int
			code   string
		}{
			"unknown variant":    {dErrors.New(dErrors.CodeUnknownVariant, "JourneyCancel is not a Move event"), http.StatusUnprocessableEntity, "unknown_variant"},
			"schema violation":   {dErrors.WithFields(dErrors.CodeSchemaViolation, "invalid details", map[string]string{"date": "must be a date"}), http.StatusUnprocessableEntity, "schema_violation"},
			"invalid transition": {dErrors.New(dErrors.CodeInvalidTransition, "cannot complete a requested move"), http.StatusConflict, "invalid_transition"},
			"store failure":      {dErrors.New(dErrors.CodeInternal, "db down"), http.StatusInternalServerError, "internal_error"},
		}
		for name, tt := range tests {
			t.Run(name, func(t *testing.T) {
				events, _, router := s.newRouter(t)
				events.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil, tt.err)

				req := s.authed(testutil.NewJSONRequest(t, http.MethodPost, s.eventsPath(), RecordEventRequest{
					Type: "MoveComplete", OccurredAt: occurred,
				}))
				resp := testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), tt.status, tt.code)
				if tt.code == "internal_error" {
					assert.Empty(t, resp.Description)
				}
			})
		}
	})
}

func (s *HandlerSuite) TestListEvents() {
	s.T().Run("returns events in feed shape", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		ref := id.Ref{Kind: id.KindMove, ID: s.moveID}
		stored := s.storedEvent(ref, models.Intent{
			Variant:    "MoveAccept",
			OccurredAt: time.Date(2020, 1, 29, 9, 0, 0, 0, time.UTC),
		})
		events.EXPECT().Events(gomock.Any(), ref).Return([]*models.Event{stored}, nil)

		rr := testutil.DoRequest(router, s.authed(testutil.NewJSONRequest(t, http.MethodGet, s.eventsPath(), nil)))
		require.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[struct {
			Events []map[string]any `json:"events"`
		}](t, rr)
		require.Len(t, resp.Events, 1)
		assert.Equal(t, "MoveAccept", resp.Events[0]["type"])
		assert.Equal(t, "Move", resp.Events[0]["eventable_type"])
	})

	s.T().Run("unknown eventable - 404", func(t *testing.T) {
		events, _, router := s.newRouter(t)
		events.EXPECT().Events(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeNotFound, "Move not found"))

		rr := testutil.DoRequest(router, s.authed(testutil.NewJSONRequest(t, http.MethodGet, s.eventsPath(), nil)))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestOps() {
	path := "/ops/moves/" + s.moveID.String()
	ref := id.Ref{Kind: id.KindMove, ID: s.moveID}

	s.T().Run("dry run requires the ops token", func(t *testing.T) {
		_, ops, router := s.newRouter(t)
		ops.EXPECT().DryRun(gomock.Any(), gomock.Any()).Times(0)

		req := testutil.NewJSONRequest(t, http.MethodGet, path+"/dry-run", nil)
		req.Header.Set(admin.TokenHeader, "wrong")
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusUnauthorized, "unauthorized")
	})

	s.T().Run("dry run returns the report", func(t *testing.T) {
		_, ops, router := s.newRouter(t)
		ops.EXPECT().DryRun(gomock.Any(), ref).Return(runner.DryRunReport{
			Ref:              ref,
			Events:           []runner.EventVerdict{{ID: id.NewEventID(), Variant: "MoveApprove", Valid: true}},
			Valid:            true,
			MatchesPersisted: true,
		})

		req := testutil.NewJSONRequest(t, http.MethodGet, path+"/dry-run", nil)
		req.Header.Set(admin.TokenHeader, opsToken)
		rr := testutil.DoRequest(router, req)

		require.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[runner.DryRunReport](t, rr)
		assert.True(t, resp.Valid)
		assert.True(t, resp.MatchesPersisted)
		assert.Len(t, resp.Events, 1)
	})

	s.T().Run("dry run of a missing eventable - 404", func(t *testing.T) {
		_, ops, router := s.newRouter(t)
		ops.EXPECT().DryRun(gomock.Any(), ref).Return(runner.DryRunReport{
			Ref: ref,
			Err: dErrors.New(dErrors.CodeNotFound, "Move not found"),
		})

		req := testutil.NewJSONRequest(t, http.MethodGet, path+"/dry-run", nil)
		req.Header.Set(admin.TokenHeader, opsToken)
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusNotFound, "not_found")
	})

	s.T().Run("replay reports whether states match", func(t *testing.T) {
		_, ops, router := s.newRouter(t)
		move := &entities.Move{ID: s.moveID, State: entities.MoveBooked}
		ops.EXPECT().Verify(gomock.Any(), ref).Return(&runner.Verification{
			Ref: ref, Persisted: move, Replayed: move.Clone(), Matches: true,
		}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, path+"/replay", nil)
		req.Header.Set(admin.TokenHeader, opsToken)
		rr := testutil.DoRequest(router, req)

		require.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, true, (*resp)["matches"])
	})
}

func (s *HandlerSuite) TestHealthAndMetrics() {
	_, _, router := s.newRouter(s.T())

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("ok", rr.Body.String())

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestIntakeRateLimit() {
	t := s.T()
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventService(ctrl)
	fixed := time.Date(2020, 1, 29, 9, 0, 0, 0, time.UTC)
	router := NewRouter(Deps{
		Events:        events,
		Ops:           mocks.NewMockOpsService(ctrl),
		Tokens:        staticTokens{claims: &authmw.SupplierClaims{SupplierID: s.supplier, Subject: "serco"}},
		IntakeLimiter: ratelimit.New(1, 1, ratelimit.WithClock(func() time.Time { return fixed })),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	events.EXPECT().Events(gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)

	rr := testutil.DoRequest(router, s.authed(testutil.NewJSONRequest(t, http.MethodGet, s.eventsPath(), nil)))
	s.Equal(http.StatusOK, rr.Code)

	rr = testutil.DoRequest(router, s.authed(testutil.NewJSONRequest(t, http.MethodGet, s.eventsPath(), nil)))
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("1", rr.Header().Get("Retry-After"))
}
