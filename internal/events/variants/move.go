package variants

import (
	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

var moveOnly = []id.EventableKind{id.KindMove}

var cancellationReasons = []string{
	"made_in_error", "supplier_declined_to_move", "cancelled_by_pmu",
	"rejected", "database_correction", "incomplete_per", "other",
}

var rejectionReasons = []string{
	"no_space_at_receiving_prison", "no_transport_available", "more_info_required",
}

func moveDefinitions() []registry.Definition {
	return []registry.Definition{
		{
			Name:       "MoveApprove",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				{Name: "date", Type: registry.TypeDate, Required: true},
				{Name: "create_in_nomis", Type: registry.TypeBoolean},
			},
			Trigger: moveApprove,
		},
		{Name: "MoveAccept", Eventables: moveOnly, Trigger: moveStep("accept")},
		{Name: "MoveStart", Eventables: moveOnly, Trigger: moveStep("start")},
		{Name: "MoveComplete", Eventables: moveOnly, Trigger: moveStep("complete")},
		{
			Name:       "MoveCancel",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				{Name: "cancellation_reason", Type: registry.TypeString, Required: true, Enum: cancellationReasons},
				{Name: "cancellation_reason_comment", Type: registry.TypeString},
			},
			Trigger: moveCancel,
		},
		{
			Name:       "MoveReject",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				{Name: "rejection_reason", Type: registry.TypeString, Required: true, Enum: rejectionReasons},
				{Name: "cancellation_reason_comment", Type: registry.TypeString},
			},
			Trigger: moveReject,
		},
		{
			Name:       "MoveRedirect",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				locationField("to_location_id", true),
				{Name: "reason", Type: registry.TypeString, Enum: []string{"no_space", "serious_incident", "covid", "receiving_prison_request", "force_majeure", "other"}},
			},
			Trigger: moveRedirect,
		},
		{
			Name:       "MoveLockout",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				locationField("from_location_id", true),
				{Name: "reason", Type: registry.TypeString, Enum: []string{"unachievable_ptr_request", "no_space", "unavailable_resource_vehicle_or_staff", "late_sitting_court", "unachievable_redirection", "other"}},
				{Name: "authorised_by", Type: registry.TypeString, Enum: []string{"PMU", "CDM", "Other"}},
			},
			Trigger: moveLockout,
		},
		{
			Name:       "MoveLodgingStart",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				locationField("location_id", true),
				{Name: "start_date", Type: registry.TypeDate, Required: true},
				{Name: "end_date", Type: registry.TypeDate, Required: true},
			},
			Rules: []registry.Rule{{
				Field:   "end_date",
				Expr:    "details.start_date <= details.end_date",
				Message: "must not be before start_date",
			}},
			Trigger: moveLodgingStart,
		},
		{
			Name:       "MoveNotifyPremisesOfEta",
			Eventables: moveOnly,
			Fields: []registry.FieldSpec{
				{Name: "expected_at", Type: registry.TypeDateTime, Required: true},
			},
			Trigger: moveNotifyPremisesOfEta,
		},
	}
}

func moveApprove(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	next, err := entities.MoveMachine.Next("approve", m.State)
	if err != nil {
		return nil, err
	}
	raw, _ := ev.Text("date")
	date, err := entities.ParseDate(raw)
	if err != nil {
		return nil, dErrors.WithFields(dErrors.CodeSchemaViolation, "invalid date", map[string]string{"date": "must be a calendar date"})
	}
	m.State = next
	m.Date = date

	if !ev.Bool("create_in_nomis") {
		return nil, nil
	}
	return []models.Effect{{
		Name:    EffectCreateInNomis,
		Payload: map[string]any{"move_id": m.ID.String(), "date": date.String()},
	}}, nil
}

func moveStep(event string) registry.Trigger {
	return func(e entities.Eventable, _ *models.Event) ([]models.Effect, error) {
		m, err := as[*entities.Move](e)
		if err != nil {
			return nil, err
		}
		next, err := entities.MoveMachine.Next(event, m.State)
		if err != nil {
			return nil, err
		}
		m.State = next
		return nil, nil
	}
}

func moveCancel(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	next, err := entities.MoveMachine.Next("cancel", m.State)
	if err != nil {
		return nil, err
	}
	m.State = next
	m.CancellationReason, _ = ev.Text("cancellation_reason")
	m.CancellationComment, _ = ev.Text("cancellation_reason_comment")
	return nil, nil
}

func moveReject(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	next, err := entities.MoveMachine.Next("reject", m.State)
	if err != nil {
		return nil, err
	}
	m.State = next
	m.CancellationReason = "rejected"
	m.RejectionReason, _ = ev.Text("rejection_reason")
	m.CancellationComment, _ = ev.Text("cancellation_reason_comment")
	return nil, nil
}

func moveRedirect(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	if m.State == entities.MoveCompleted || m.State == entities.MoveCancelled {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot redirect a move that is "+m.State)
	}
	m.ToLocationID, _ = ev.LocationID("to_location_id")
	return nil, nil
}

func moveLockout(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	m.LockoutLocationID, _ = ev.LocationID("from_location_id")
	m.LockedOutAt = ev.OccurredAt
	return nil, nil
}

func moveLodgingStart(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	start, _ := ev.Text("start_date")
	end, _ := ev.Text("end_date")
	from, err := entities.ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := entities.ParseDate(end)
	if err != nil {
		return nil, err
	}
	m.LodgingLocationID, _ = ev.LocationID("location_id")
	m.LodgingFrom = from
	m.LodgingTo = to
	return nil, nil
}

func moveNotifyPremisesOfEta(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	m, err := as[*entities.Move](e)
	if err != nil {
		return nil, err
	}
	m.ExpectedAt, _ = ev.Time("expected_at")
	return nil, nil
}
