package locations

import (
	"context"
	"errors"

	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
)

// RelationshipKind is the relationship name location fields declare.
const RelationshipKind = "location"

// Resolver answers relationship lookups for location ids.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Exists reports whether the referenced location exists. Unknown relationship
// kinds never resolve.
func (r *Resolver) Exists(ctx context.Context, kind, ref string) (bool, error) {
	if kind != RelationshipKind {
		return false, nil
	}
	locationID, err := id.ParseLocationID(ref)
	if err != nil {
		return false, nil
	}
	if _, err := r.store.Get(ctx, locationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Lookup returns the location for feed expansion, or nil when unknown.
func (r *Resolver) Lookup(ctx context.Context, locationID id.LocationID) (*Location, error) {
	loc, err := r.store.Get(ctx, locationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return loc, err
}
