package variants

import (
	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	id "movetrack/pkg/domain"
)

var journeyOnly = []id.EventableKind{id.KindJourney}

func journeyDefinitions() []registry.Definition {
	defs := []registry.Definition{
		{
			Name:       "JourneyLockout",
			Eventables: journeyOnly,
			Fields:     []registry.FieldSpec{locationField("from_location_id", true)},
			Trigger:    journeyLockout,
		},
		{
			Name:       "JourneyLodging",
			Eventables: journeyOnly,
			Fields:     []registry.FieldSpec{locationField("to_location_id", true)},
			Trigger:    journeyLodging,
		},
		{
			Name:       "JourneyChangeVehicle",
			Eventables: journeyOnly,
			Fields: []registry.FieldSpec{
				{Name: "vehicle_reg", Type: registry.TypeString, Required: true},
				{Name: "previous_vehicle_reg", Type: registry.TypeString},
			},
			Trigger: journeyChangeVehicle,
		},
		{
			Name:       "JourneyPersonBoardsVehicle",
			Eventables: journeyOnly,
			Fields: []registry.FieldSpec{
				{Name: "vehicle_type", Type: registry.TypeString, Enum: []string{"c4", "pro_cab", "mpv", "2_cell", "3_cell", "6_cell", "12_cell"}},
				{Name: "vehicle_reg", Type: registry.TypeString},
			},
			Rules: []registry.Rule{{
				Field:   "vehicle_reg",
				Expr:    "has(details.vehicle_reg) || has(details.vehicle_type)",
				Message: "or vehicle_type must be present",
			}},
			Trigger: journeyPersonBoardsVehicle,
		},
	}
	for _, step := range []struct{ name, event string }{
		{"JourneyStart", "start"},
		{"JourneyComplete", "complete"},
		{"JourneyUncomplete", "uncomplete"},
		{"JourneyCancel", "cancel"},
		{"JourneyUncancel", "uncancel"},
		{"JourneyReject", "reject"},
	} {
		defs = append(defs, registry.Definition{
			Name:       step.name,
			Eventables: journeyOnly,
			Trigger:    journeyStep(step.event),
		})
	}
	return defs
}

// journeyStep fires event through the journey transition table.
func journeyStep(event string) registry.Trigger {
	return func(e entities.Eventable, _ *models.Event) ([]models.Effect, error) {
		j, err := as[*entities.Journey](e)
		if err != nil {
			return nil, err
		}
		return nil, j.Fire(event)
	}
}

func journeyLockout(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	j, err := as[*entities.Journey](e)
	if err != nil {
		return nil, err
	}
	j.LockoutLocationID, _ = ev.LocationID("from_location_id")
	return nil, nil
}

func journeyLodging(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	j, err := as[*entities.Journey](e)
	if err != nil {
		return nil, err
	}
	j.LodgingLocationID, _ = ev.LocationID("to_location_id")
	return nil, nil
}

func journeyChangeVehicle(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	j, err := as[*entities.Journey](e)
	if err != nil {
		return nil, err
	}
	j.VehicleReg, _ = ev.Text("vehicle_reg")
	return nil, nil
}

func journeyPersonBoardsVehicle(e entities.Eventable, ev *models.Event) ([]models.Effect, error) {
	j, err := as[*entities.Journey](e)
	if err != nil {
		return nil, err
	}
	if reg, ok := ev.Text("vehicle_reg"); ok {
		j.VehicleReg = reg
	}
	j.LastBoardedAt = ev.OccurredAt
	return nil, nil
}
