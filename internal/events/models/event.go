package models

import (
	"cmp"
	"slices"
	"strings"
	"time"

	id "movetrack/pkg/domain"
)

// Namespace prefixes variant names internally. Feeds strip it.
const Namespace = "event."

// Qualify adds the namespace prefix to a variant name if missing.
func Qualify(name string) string {
	if strings.HasPrefix(name, Namespace) {
		return name
	}
	return Namespace + name
}

// Unqualify strips the namespace prefix.
func Unqualify(name string) string {
	return strings.TrimPrefix(name, Namespace)
}

// Event is one immutable entry in an eventable's log.
type Event struct {
	ID         id.EventID
	Eventable  id.Ref
	Variant    string
	OccurredAt time.Time
	RecordedAt time.Time
	CreatedBy  string
	Notes      string
	Details    map[string]any
	SupplierID id.SupplierID
	// Seq is the per-eventable insertion sequence, assigned at commit.
	Seq       int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Intent is a request to record an event.
type Intent struct {
	Variant    string
	OccurredAt time.Time
	RecordedAt time.Time
	CreatedBy  string
	Notes      string
	Details    map[string]any
	SupplierID id.SupplierID
}

// Compare orders events by occurred_at, then by insertion sequence.
func Compare(a, b *Event) int {
	if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// SortApplied sorts events into applied order in place.
func SortApplied(events []*Event) {
	slices.SortStableFunc(events, Compare)
}

// Text returns a non-empty string detail.
func (e *Event) Text(key string) (string, bool) {
	s, ok := e.Details[key].(string)
	return s, ok && s != ""
}

// Bool returns a boolean detail, false when absent.
func (e *Event) Bool(key string) bool {
	b, _ := e.Details[key].(bool)
	return b
}

// Time parses an RFC 3339 date-time detail.
func (e *Event) Time(key string) (time.Time, bool) {
	s, ok := e.Text(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// LocationID parses a location relationship detail.
func (e *Event) LocationID(key string) (id.LocationID, bool) {
	s, ok := e.Text(key)
	if !ok {
		return id.LocationID{}, false
	}
	loc, err := id.ParseLocationID(s)
	return loc, err == nil
}

// Effect is a post-commit side effect a trigger asks the runner to execute.
type Effect struct {
	Name    string
	Payload map[string]any
}

// NormalizeTime brings timestamps to the precision and zone every store keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
