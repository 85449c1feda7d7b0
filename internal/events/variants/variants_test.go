package variants

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/testutil"
)

func mustRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := Default()
	require.NoError(t, err)
	return reg
}

// apply validates details and runs the trigger against e, as the runner would.
func apply(t *testing.T, reg *registry.Registry, e entities.Eventable, variant string, details map[string]any) ([]models.Effect, error) {
	t.Helper()
	v, err := reg.Resolve(e.Ref().Kind, variant)
	if err != nil {
		return nil, err
	}
	canonical, err := v.Validate(details)
	if err != nil {
		return nil, err
	}
	ev := &models.Event{
		ID:         id.NewEventID(),
		Eventable:  e.Ref(),
		Variant:    v.Name(),
		OccurredAt: time.Date(2020, 1, 29, 9, 0, 0, 0, time.UTC),
		Details:    canonical,
	}
	return v.Trigger()(e, ev)
}

func TestCatalogueBuilds(t *testing.T) {
	reg := mustRegistry(t)
	assert.Contains(t, reg.ForKind(id.KindMove), "MoveApprove")
	assert.Contains(t, reg.ForKind(id.KindMove), "PersonMoveAssault")
	assert.Contains(t, reg.ForKind(id.KindPerson), "PersonMoveAssault")
	assert.NotContains(t, reg.ForKind(id.KindMove), "JourneyCancel")
}

func TestMoveApprove(t *testing.T) {
	reg := mustRegistry(t)

	testutil.Given(t, "a proposed move", func(t *testing.T) {
		testutil.When(t, "approved with a date and create_in_nomis", func(t *testing.T) {
			m := &entities.Move{ID: id.NewEntityID(), State: entities.MoveProposed}
			effects, err := apply(t, reg, m, "MoveApprove", map[string]any{"date": "2020-01-30", "create_in_nomis": true})
			require.NoError(t, err)

			testutil.Then(t, "the move is requested for that date", func(t *testing.T) {
				assert.Equal(t, entities.MoveRequested, m.State)
				assert.Equal(t, "2020-01-30", m.Date.String())
			})
			testutil.Then(t, "an external creation is requested", func(t *testing.T) {
				require.Len(t, effects, 1)
				assert.Equal(t, EffectCreateInNomis, effects[0].Name)
				assert.Equal(t, m.ID.String(), effects[0].Payload["move_id"])
			})
		})

		testutil.When(t, "approved without create_in_nomis", func(t *testing.T) {
			m := &entities.Move{ID: id.NewEntityID(), State: entities.MoveProposed}
			effects, err := apply(t, reg, m, "MoveApprove", map[string]any{"date": "2020-01-30"})
			require.NoError(t, err)
			testutil.Then(t, "no side effect is declared", func(t *testing.T) {
				assert.Empty(t, effects)
			})
		})
	})

	t.Run("rejects a non-proposed move", func(t *testing.T) {
		m := &entities.Move{State: entities.MoveBooked}
		_, err := apply(t, reg, m, "MoveApprove", map[string]any{"date": "2020-01-30"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		assert.Equal(t, entities.MoveBooked, m.State)
	})

	t.Run("rejects a slash date", func(t *testing.T) {
		m := &entities.Move{State: entities.MoveProposed}
		_, err := apply(t, reg, m, "MoveApprove", map[string]any{"date": "2019/01/01"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSchemaViolation))
		assert.Contains(t, dErrors.FieldsOf(err), "date")
	})
}

func TestMoveLockout(t *testing.T) {
	reg := mustRegistry(t)
	loc := uuid.New().String()
	m := &entities.Move{State: entities.MoveBooked}

	_, err := apply(t, reg, m, "MoveLockout", map[string]any{})
	assert.Contains(t, dErrors.FieldsOf(err), "from_location_id")

	_, err = apply(t, reg, m, "MoveLockout", map[string]any{"from_location_id": loc, "reason": "no_space"})
	require.NoError(t, err)
	assert.Equal(t, loc, m.LockoutLocationID.String())
	assert.False(t, m.LockedOutAt.IsZero())
	assert.Equal(t, entities.MoveBooked, m.State, "lockout does not change status")
}

func TestMoveLodgingStartRule(t *testing.T) {
	reg := mustRegistry(t)
	m := &entities.Move{State: entities.MoveBooked}
	_, err := apply(t, reg, m, "MoveLodgingStart", map[string]any{
		"location_id": uuid.New().String(),
		"start_date":  "2024-02-02",
		"end_date":    "2024-02-01",
	})
	assert.Equal(t, "must not be before start_date", dErrors.FieldsOf(err)["end_date"])
}

func TestJourneyTransitions(t *testing.T) {
	reg := mustRegistry(t)

	t.Run("cancel then uncancel", func(t *testing.T) {
		j := &entities.Journey{State: entities.JourneyInProgress}
		_, err := apply(t, reg, j, "JourneyCancel", nil)
		require.NoError(t, err)
		assert.Equal(t, entities.JourneyCancelled, j.State)
		_, err = apply(t, reg, j, "JourneyUncancel", nil)
		require.NoError(t, err)
		assert.Equal(t, entities.JourneyInProgress, j.State)
	})

	t.Run("completing a cancelled journey is invalid", func(t *testing.T) {
		j := &entities.Journey{State: entities.JourneyCancelled}
		_, err := apply(t, reg, j, "JourneyComplete", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("journey cancel on a move is an unknown variant", func(t *testing.T) {
		_, err := apply(t, reg, &entities.Move{State: entities.MoveBooked}, "JourneyCancel", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownVariant))
	})

	t.Run("boarding needs a vehicle reference", func(t *testing.T) {
		j := &entities.Journey{State: entities.JourneyInProgress}
		_, err := apply(t, reg, j, "JourneyPersonBoardsVehicle", map[string]any{})
		assert.Contains(t, dErrors.FieldsOf(err), "vehicle_reg")

		_, err = apply(t, reg, j, "JourneyPersonBoardsVehicle", map[string]any{"vehicle_reg": "AB12 CDE"})
		require.NoError(t, err)
		assert.Equal(t, "AB12 CDE", j.VehicleReg)
	})
}

func TestIncidents(t *testing.T) {
	reg := mustRegistry(t)
	details := map[string]any{
		"reported_at":                "2024-01-01T10:00:00Z",
		"fault_classification":       "investigation",
		"location_id":                uuid.New().String(),
		"supplier_personnel_numbers": []string{"123", "456"},
	}

	p := &entities.Person{}
	_, err := apply(t, reg, p, "PersonMoveAssault", details)
	require.NoError(t, err)
	assert.Equal(t, 1, p.IncidentCount)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), p.LastIncidentAt)

	m := &entities.Move{State: entities.MoveInTransit}
	_, err = apply(t, reg, m, "PersonMoveVehicleBrokeDown", details)
	require.NoError(t, err)
	assert.Equal(t, 1, m.IncidentCount)

	_, err = apply(t, reg, &entities.Journey{}, "PersonMoveUsedForce", details)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownVariant))
}

func TestIncidentFaultClassification(t *testing.T) {
	reg := mustRegistry(t)
	for _, tc := range []struct {
		value string
		valid bool
	}{
		{"not_supplier", true},
		{"supplier", true},
		{"investigation", true},
		{"was_not_supplier", false},
	} {
		t.Run(tc.value, func(t *testing.T) {
			m := &entities.Move{State: entities.MoveInTransit}
			_, err := apply(t, reg, m, "PersonMoveAssault", map[string]any{
				"reported_at":          "2024-01-01T10:00:00Z",
				"fault_classification": tc.value,
				"location_id":          uuid.New().String(),
			})
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, 1, m.IncidentCount)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeSchemaViolation))
			assert.Contains(t, dErrors.FieldsOf(err), "fault_classification")
		})
	}
}

func TestPerCourtTakeFromCustodyToDock(t *testing.T) {
	reg := mustRegistry(t)
	court := uuid.New()

	testutil.Given(t, "a person escort record in progress", func(t *testing.T) {
		p := &entities.PersonEscortRecord{ID: id.NewEntityID(), State: entities.PERInProgress}

		testutil.When(t, "the person is taken to the dock without a location", func(t *testing.T) {
			_, err := apply(t, reg, p, "PerCourtTakeFromCustodyToDock", map[string]any{})
			testutil.Then(t, "location_id is reported missing", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeSchemaViolation))
				assert.Contains(t, dErrors.FieldsOf(err), "location_id")
			})
		})

		testutil.When(t, "the person is taken to the dock at a court", func(t *testing.T) {
			_, err := apply(t, reg, p, "PerCourtTakeFromCustodyToDock", map[string]any{"location_id": court.String()})
			require.NoError(t, err)
			testutil.Then(t, "the dock location and time are recorded", func(t *testing.T) {
				assert.Equal(t, court.String(), p.DockLocationID.String())
				assert.Equal(t, time.Date(2020, 1, 29, 9, 0, 0, 0, time.UTC), p.TakenToDockAt)
				assert.Equal(t, entities.PERInProgress, p.State)
			})
		})
	})

	_, err := reg.Resolve(id.KindMove, "PerCourtTakeFromCustodyToDock")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownVariant))
}
