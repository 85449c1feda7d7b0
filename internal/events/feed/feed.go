// Package feed renders events in the shape published to external consumers
// and exports per-eventable event logs as JSON lines.
package feed

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	"movetrack/internal/locations"
	id "movetrack/pkg/domain"
)

// Record is one event as published. Type never carries the internal
// namespace prefix.
type Record struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Notes         string         `json:"notes"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	OccurredAt    time.Time      `json:"occurred_at"`
	RecordedAt    time.Time      `json:"recorded_at"`
	EventableID   string         `json:"eventable_id"`
	EventableType string         `json:"eventable_type"`
	Details       map[string]any `json:"details"`
	Supplier      string         `json:"supplier,omitempty"`
}

// Lookup adds display fields for the relationship references of an event.
type Lookup interface {
	Expand(ctx context.Context, ev *models.Event) (map[string]any, error)
}

// ForFeed renders ev. With a nil lookup relationship ids are left as they are.
func ForFeed(ctx context.Context, ev *models.Event, lookup Lookup) (Record, error) {
	details := maps.Clone(ev.Details)
	if details == nil {
		details = map[string]any{}
	}
	if lookup != nil {
		extra, err := lookup.Expand(ctx, ev)
		if err != nil {
			return Record{}, fmt.Errorf("expand relationships of %s: %w", ev.ID, err)
		}
		maps.Copy(details, extra)
	}
	rec := Record{
		ID:            ev.ID.String(),
		Type:          models.Unqualify(ev.Variant),
		Notes:         ev.Notes,
		CreatedAt:     ev.CreatedAt.UTC(),
		UpdatedAt:     ev.UpdatedAt.UTC(),
		OccurredAt:    ev.OccurredAt.UTC(),
		RecordedAt:    ev.RecordedAt.UTC(),
		EventableID:   ev.Eventable.ID.String(),
		EventableType: string(ev.Eventable.Kind),
		Details:       details,
	}
	if !ev.SupplierID.IsNil() {
		rec.Supplier = ev.SupplierID.String()
	}
	return rec, nil
}

type LocationDirectory interface {
	Lookup(ctx context.Context, locationID id.LocationID) (*locations.Location, error)
}

// RelationshipLookup expands location relationships declared by the
// variant: a "to_location_id" field yields "to_location" (the location key)
// and "to_location_type".
type RelationshipLookup struct {
	registry  *registry.Registry
	locations LocationDirectory
}

func NewRelationshipLookup(reg *registry.Registry, dir LocationDirectory) *RelationshipLookup {
	return &RelationshipLookup{registry: reg, locations: dir}
}

func (l *RelationshipLookup) Expand(ctx context.Context, ev *models.Event) (map[string]any, error) {
	variant, ok := l.registry.Lookup(ev.Variant)
	if !ok {
		return nil, nil
	}
	out := map[string]any{}
	for _, rel := range variant.Relationships(ev.Details) {
		if rel.Kind != locations.RelationshipKind {
			continue
		}
		locationID, err := id.ParseLocationID(rel.ID)
		if err != nil {
			continue
		}
		loc, err := l.locations.Lookup(ctx, locationID)
		if err != nil {
			return nil, err
		}
		if loc == nil {
			continue
		}
		name := strings.TrimSuffix(rel.Field, "_id")
		out[name] = loc.Key
		out[name+"_type"] = loc.Type
	}
	return out, nil
}
