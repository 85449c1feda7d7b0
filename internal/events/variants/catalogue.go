// Package variants declares every event variant the service accepts and the
// trigger that projects each one onto its eventable.
package variants

import (
	"fmt"

	"movetrack/internal/entities"
	"movetrack/internal/events/registry"
	dErrors "movetrack/pkg/domain-errors"
)

// EffectCreateInNomis asks for the move to be created in the prison system.
const EffectCreateInNomis = "create_in_nomis"

// RelationshipLocation is the relationship kind for location ids.
const RelationshipLocation = "location"

// Definitions returns the full catalogue.
func Definitions() []registry.Definition {
	var defs []registry.Definition
	defs = append(defs, moveDefinitions()...)
	defs = append(defs, journeyDefinitions()...)
	defs = append(defs, personEscortRecordDefinitions()...)
	defs = append(defs, incidentDefinitions()...)
	return defs
}

// Default builds the process-wide registry.
func Default() (*registry.Registry, error) {
	b := registry.NewBuilder()
	for _, def := range Definitions() {
		b.Register(def)
	}
	return b.Build()
}

func as[T entities.Eventable](e entities.Eventable) (T, error) {
	t, ok := e.(T)
	if !ok {
		var zero T
		return zero, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("trigger received %T", e))
	}
	return t, nil
}

func locationField(name string, required bool) registry.FieldSpec {
	return registry.FieldSpec{Name: name, Type: registry.TypeString, Required: required, Relationship: RelationshipLocation}
}
