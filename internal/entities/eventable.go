// Package entities holds the eventable aggregates whose state is driven by
// the event log, together with their transition tables and invariants.
package entities

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	id "movetrack/pkg/domain"
)

// Eventable is an entity that owns an ordered event log.
type Eventable interface {
	Ref() id.Ref
	Status() string
	// Clone returns a deep copy safe to mutate.
	Clone() Eventable
	// Validate returns field -> message for every broken invariant.
	Validate() map[string]string
}

// Supplied is implemented by eventables attributed to one or more suppliers.
type Supplied interface {
	Suppliers() []id.SupplierID
}

// New returns an empty eventable of the given kind.
func New(kind id.EventableKind, entityID id.EntityID) (Eventable, error) {
	switch kind {
	case id.KindMove:
		return &Move{ID: entityID, State: MoveProposed}, nil
	case id.KindJourney:
		return &Journey{ID: entityID, State: JourneyProposed}, nil
	case id.KindPersonEscortRecord:
		return &PersonEscortRecord{ID: entityID, State: PERInProgress}, nil
	case id.KindPerson:
		return &Person{ID: entityID}, nil
	default:
		return nil, fmt.Errorf("unsupported eventable kind %q", kind)
	}
}

// Encode returns the canonical JSON snapshot of e. Equal states encode to
// identical bytes.
func Encode(e Eventable) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Ref().Kind, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", e.Ref().Kind, err)
	}
	return canonical, nil
}

// Decode restores a snapshot produced by Encode.
func Decode(kind id.EventableKind, data []byte) (Eventable, error) {
	e, err := New(kind, id.EntityID{})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("unmarshal %s snapshot: %w", kind, err)
	}
	return e, nil
}

// Equal compares two eventables by canonical snapshot.
func Equal(a, b Eventable) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, err := Encode(a)
	if err != nil {
		return false
	}
	bb, err := Encode(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
