package domain

import dErrors "movetrack/pkg/domain-errors"

// EventableKind names the entity types that own an event log.
// Construct via ParseEventableKind or ParseKindSegment at trust boundaries.
type EventableKind string

const (
	KindMove               EventableKind = "Move"
	KindJourney            EventableKind = "Journey"
	KindPersonEscortRecord EventableKind = "PersonEscortRecord"
	KindPerson             EventableKind = "Person"
)

// kindSegments maps URL path segments to kinds.
var kindSegments = map[string]EventableKind{
	"moves":                 KindMove,
	"journeys":              KindJourney,
	"person_escort_records": KindPersonEscortRecord,
	"people":                KindPerson,
}

// AllKinds lists every eventable kind in a stable order.
func AllKinds() []EventableKind {
	return []EventableKind{KindMove, KindJourney, KindPersonEscortRecord, KindPerson}
}

func ParseEventableKind(s string) (EventableKind, error) {
	for _, k := range AllKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown eventable kind: "+s)
}

// ParseKindSegment parses the plural route form, e.g. "moves".
func ParseKindSegment(s string) (EventableKind, error) {
	if k, ok := kindSegments[s]; ok {
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeNotFound, "unknown eventable collection: "+s)
}

func (k EventableKind) String() string {
	return string(k)
}

// Ref is a polymorphic (kind, id) reference to an eventable.
type Ref struct {
	Kind EventableKind `json:"kind"`
	ID   EntityID      `json:"id"`
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}
