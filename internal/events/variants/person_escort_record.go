package variants

import (
	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	id "movetrack/pkg/domain"
)

var perOnly = []id.EventableKind{id.KindPersonEscortRecord}

func personEscortRecordDefinitions() []registry.Definition {
	return []registry.Definition{
		{
			Name:       "PerCourtHearing",
			Eventables: perOnly,
			Fields: []registry.FieldSpec{
				{Name: "court_outcome", Type: registry.TypeString, Required: true,
					Enum: []string{"adjourned", "remanded_in_custody", "bailed", "sentenced", "discharged", "other"}},
				{Name: "is_virtual", Type: registry.TypeBoolean},
				{Name: "is_trial", Type: registry.TypeBoolean},
				{Name: "court_listing_at", Type: registry.TypeDateTime},
				{Name: "comments", Type: registry.TypeString},
				locationField("location_id", false),
			},
			Rules: []registry.Rule{{
				Field:   "comments",
				Expr:    "has(details.court_listing_at) || has(details.comments)",
				Message: "is required when court_listing_at is absent",
			}},
			Trigger: perCourtHearing,
		},
		{
			Name:       "PerMedicalAid",
			Eventables: perOnly,
			Fields: []registry.FieldSpec{
				{Name: "advised_at", Type: registry.TypeDateTime, Required: true},
				{Name: "advised_by", Type: registry.TypeString, Required: true},
				{Name: "treated_at", Type: registry.TypeDateTime},
				{Name: "treated_by", Type: registry.TypeString},
				locationField("location_id", true),
			},
			Trigger: perMedicalAid,
		},
		{
			Name:       "PerCourtTakeFromCustodyToDock",
			Eventables: perOnly,
			Fields:     []registry.FieldSpec{locationField("location_id", true)},
			Trigger:    perTakenToDock,
		},
		{
			Name:       "PerGeneric",
			Eventables: perOnly,
			Trigger:    perGeneric,
		},
	}
}

func perCourtHearing(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	p, err := as[*entities.PersonEscortRecord](e)
	if err != nil {
		return nil, err
	}
	p.CourtHearings++
	p.LastCourtOutcome, _ = ev.Text("court_outcome")
	return nil, nil
}

func perMedicalAid(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	p, err := as[*entities.PersonEscortRecord](e)
	if err != nil {
		return nil, err
	}
	p.MedicalAidEvents++
	p.LastMedicalAidAt, _ = ev.Time("advised_at")
	return nil, nil
}

// perTakenToDock records the court a person was brought up to the dock at.
func perTakenToDock(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	p, err := as[*entities.PersonEscortRecord](e)
	if err != nil {
		return nil, err
	}
	p.DockLocationID, _ = ev.LocationID("location_id")
	p.TakenToDockAt = ev.OccurredAt
	return nil, nil
}

func perGeneric(e entities.Eventable, _ *models.Event) ([]models.Effect, error) {
	p, err := as[*entities.PersonEscortRecord](e)
	if err != nil {
		return nil, err
	}
	p.GenericEventCount++
	return nil, nil
}
