package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "movetrack/pkg/domain-errors"
)

// Typed identifiers. Parse at trust boundaries; direct conversion from
// uuid.UUID is reserved for generation and store scanning.
type (
	EntityID       uuid.UUID
	EventID        uuid.UUID
	SupplierID     uuid.UUID
	SubscriptionID uuid.UUID
	NotificationID uuid.UUID
	LocationID     uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s, "eventable id")
	return EntityID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}

func ParseSupplierID(s string) (SupplierID, error) {
	u, err := parseUUID(s, "supplier id")
	return SupplierID(u), err
}

func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID(s, "subscription id")
	return SubscriptionID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification id")
	return NotificationID(u), err
}

func ParseLocationID(s string) (LocationID, error) {
	u, err := parseUUID(s, "location id")
	return LocationID(u), err
}

func (id EntityID) String() string       { return uuid.UUID(id).String() }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id SupplierID) String() string     { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id LocationID) String() string     { return uuid.UUID(id).String() }

func (id EntityID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SupplierID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LocationID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id EntityID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id SupplierID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id LocationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id SubscriptionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *EntityID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *SupplierID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *LocationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *EventID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *SubscriptionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func NewEntityID() EntityID             { return EntityID(uuid.New()) }
func NewEventID() EventID               { return EventID(uuid.New()) }
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
