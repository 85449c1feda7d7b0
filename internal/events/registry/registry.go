// Package registry is the catalogue of event variants. A Registry is built
// once at startup from declarative definitions and is read-only afterwards,
// so lookups need no synchronization.
package registry

import (
	"fmt"
	"slices"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

// Trigger mutates the entity it is given (always a disposable clone) and
// returns side effects to run after a successful commit. It must not persist.
type Trigger func(entity entities.Eventable, ev *models.Event) ([]models.Effect, error)

// Definition declares one variant.
type Definition struct {
	Name       string
	Eventables []id.EventableKind
	Fields     []FieldSpec
	Rules      []Rule
	Trigger    Trigger
}

// Registry maps qualified variant names to compiled variants.
type Registry struct {
	variants map[string]*Variant
	names    []string
}

// Resolve returns the variant registered under name for the given kind.
// name may be qualified or not.
func (r *Registry) Resolve(kind id.EventableKind, name string) (*Variant, error) {
	v, ok := r.variants[models.Qualify(name)]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownVariant,
			fmt.Sprintf("unknown event variant %q", models.Unqualify(name)))
	}
	if !v.Accepts(kind) {
		return nil, dErrors.New(dErrors.CodeUnknownVariant,
			fmt.Sprintf("%s cannot be recorded against a %s", v.ShortName(), kind))
	}
	return v, nil
}

// Lookup returns a variant regardless of eventable kind.
func (r *Registry) Lookup(name string) (*Variant, bool) {
	v, ok := r.variants[models.Qualify(name)]
	return v, ok
}

// Names lists every qualified variant name, sorted.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// ForKind lists the unqualified variants accepted by kind, sorted.
func (r *Registry) ForKind(kind id.EventableKind) []string {
	var out []string
	for _, name := range r.names {
		if v := r.variants[name]; v.Accepts(kind) {
			out = append(out, v.ShortName())
		}
	}
	return out
}
