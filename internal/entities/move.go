package entities

import (
	"time"

	id "movetrack/pkg/domain"
)

const (
	MoveProposed  = "proposed"
	MoveRequested = "requested"
	MoveBooked    = "booked"
	MoveInTransit = "in_transit"
	MoveCompleted = "completed"
	MoveCancelled = "cancelled"
)

// MoveMachine is the move lifecycle.
var MoveMachine = NewMachine("move",
	Transition{Event: "approve", From: []string{MoveProposed}, To: MoveRequested},
	Transition{Event: "accept", From: []string{MoveRequested}, To: MoveBooked},
	Transition{Event: "start", From: []string{MoveBooked}, To: MoveInTransit},
	Transition{Event: "complete", From: []string{MoveInTransit}, To: MoveCompleted},
	Transition{Event: "reject", From: []string{MoveRequested}, To: MoveCancelled},
	Transition{Event: "cancel", From: []string{MoveProposed, MoveRequested, MoveBooked, MoveInTransit}, To: MoveCancelled},
)

type Move struct {
	ID                  id.EntityID   `json:"id"`
	Reference           string        `json:"reference,omitempty"`
	State               string        `json:"status"`
	SupplierID          id.SupplierID `json:"supplier_id,omitzero"`
	FromLocationID      id.LocationID `json:"from_location_id,omitzero"`
	ToLocationID        id.LocationID `json:"to_location_id,omitzero"`
	Date                Date          `json:"date,omitzero"`
	DateFrom            Date          `json:"date_from,omitzero"`
	DateTo              Date          `json:"date_to,omitzero"`
	CancellationReason  string        `json:"cancellation_reason,omitempty"`
	CancellationComment string        `json:"cancellation_reason_comment,omitempty"`
	RejectionReason     string        `json:"rejection_reason,omitempty"`
	LockoutLocationID   id.LocationID `json:"lockout_location_id,omitzero"`
	LockedOutAt         time.Time     `json:"locked_out_at,omitzero"`
	LodgingLocationID   id.LocationID `json:"lodging_location_id,omitzero"`
	LodgingFrom         Date          `json:"lodging_from,omitzero"`
	LodgingTo           Date          `json:"lodging_to,omitzero"`
	ExpectedAt          time.Time     `json:"expected_at,omitzero"`
	IncidentCount       int           `json:"incident_count,omitempty"`
}

func (m *Move) Ref() id.Ref    { return id.Ref{Kind: id.KindMove, ID: m.ID} }
func (m *Move) Status() string { return m.State }

func (m *Move) Clone() Eventable {
	c := *m
	return &c
}

func (m *Move) Suppliers() []id.SupplierID {
	if m.SupplierID.IsNil() {
		return nil
	}
	return []id.SupplierID{m.SupplierID}
}

// IsCurrent reports whether the move's date range has not entirely elapsed.
// A move with no date at all is treated as current.
func (m *Move) IsCurrent(today Date) bool {
	last := m.Date
	if m.DateTo.After(last) {
		last = m.DateTo
	}
	if last.IsZero() {
		return true
	}
	return !last.Before(today)
}

func (m *Move) Validate() map[string]string {
	errs := map[string]string{}
	if !oneOf(m.State, MoveProposed, MoveRequested, MoveBooked, MoveInTransit, MoveCompleted, MoveCancelled) {
		errs["status"] = "is not a valid move status"
	}
	if m.FromLocationID.IsNil() {
		errs["from_location_id"] = "is required"
	}
	if m.Date.IsZero() && oneOf(m.State, MoveRequested, MoveBooked, MoveInTransit) {
		errs["date"] = "is required once the move is " + m.State
	}
	if !m.DateFrom.IsZero() && !m.DateTo.IsZero() && m.DateTo.Before(m.DateFrom) {
		errs["date_to"] = "must not be before date_from"
	}
	if m.State == MoveCancelled && m.CancellationReason == "" {
		errs["cancellation_reason"] = "is required when cancelled"
	}
	if !m.FromLocationID.IsNil() && m.FromLocationID == m.ToLocationID {
		errs["to_location_id"] = "must differ from from_location_id"
	}
	return errs
}
