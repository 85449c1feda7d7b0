package variants

import (
	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

// Incidents may be recorded against a move or directly against a person.
var incidentEventables = []id.EventableKind{id.KindMove, id.KindPerson}

func incidentFields() []registry.FieldSpec {
	return []registry.FieldSpec{
		{Name: "supplier_personnel_numbers", Type: registry.TypeStringList},
		{Name: "vehicle_reg", Type: registry.TypeString},
		{Name: "reported_at", Type: registry.TypeDateTime, Required: true},
		{Name: "fault_classification", Type: registry.TypeString, Required: true,
			Enum: []string{"not_supplier", "supplier", "investigation"}},
		locationField("location_id", true),
	}
}

func incidentDefinitions() []registry.Definition {
	var defs []registry.Definition
	for _, name := range []string{"PersonMoveAssault", "PersonMoveUsedForce", "PersonMoveVehicleBrokeDown"} {
		defs = append(defs, registry.Definition{
			Name:       name,
			Eventables: incidentEventables,
			Fields:     incidentFields(),
			Trigger:    incident,
		})
	}
	return defs
}

func incident(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	switch t := e.(type) {
	case *entities.Move:
		t.IncidentCount++
	case *entities.Person:
		t.IncidentCount++
		t.LastIncidentAt, _ = ev.Time("reported_at")
	default:
		return nil, dErrors.New(dErrors.CodeInternal, "incident recorded against "+string(e.Ref().Kind))
	}
	return nil, nil
}
