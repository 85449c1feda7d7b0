package entities

import (
	"time"

	id "movetrack/pkg/domain"
)

const (
	JourneyProposed   = "proposed"
	JourneyInProgress = "in_progress"
	JourneyCompleted  = "completed"
	JourneyCancelled  = "cancelled"
	JourneyRejected   = "rejected"
)

// JourneyMachine is the journey transition table consulted by journey triggers.
var JourneyMachine = NewMachine("journey",
	Transition{Event: "start", From: []string{JourneyProposed}, To: JourneyInProgress},
	Transition{Event: "complete", From: []string{JourneyInProgress}, To: JourneyCompleted},
	Transition{Event: "uncomplete", From: []string{JourneyCompleted}, To: JourneyInProgress},
	Transition{Event: "cancel", From: []string{JourneyProposed, JourneyInProgress}, To: JourneyCancelled},
	Transition{Event: "uncancel", From: []string{JourneyCancelled}, To: JourneyInProgress},
	Transition{Event: "reject", From: []string{JourneyProposed}, To: JourneyRejected},
)

type Journey struct {
	ID                id.EntityID   `json:"id"`
	MoveID            id.EntityID   `json:"move_id,omitzero"`
	State             string        `json:"status"`
	SupplierID        id.SupplierID `json:"supplier_id,omitzero"`
	FromLocationID    id.LocationID `json:"from_location_id,omitzero"`
	ToLocationID      id.LocationID `json:"to_location_id,omitzero"`
	Billable          bool          `json:"billable,omitempty"`
	VehicleReg        string        `json:"vehicle_registration,omitempty"`
	LockoutLocationID id.LocationID `json:"lockout_location_id,omitzero"`
	LodgingLocationID id.LocationID `json:"lodging_location_id,omitzero"`
	LastBoardedAt     time.Time     `json:"last_boarded_at,omitzero"`
}

func (j *Journey) Ref() id.Ref    { return id.Ref{Kind: id.KindJourney, ID: j.ID} }
func (j *Journey) Status() string { return j.State }

func (j *Journey) Clone() Eventable {
	c := *j
	return &c
}

func (j *Journey) Suppliers() []id.SupplierID {
	if j.SupplierID.IsNil() {
		return nil
	}
	return []id.SupplierID{j.SupplierID}
}

// Fire moves the journey through the transition table.
func (j *Journey) Fire(event string) error {
	next, err := JourneyMachine.Next(event, j.State)
	if err != nil {
		return err
	}
	j.State = next
	return nil
}

func (j *Journey) Validate() map[string]string {
	errs := map[string]string{}
	if !oneOf(j.State, JourneyProposed, JourneyInProgress, JourneyCompleted, JourneyCancelled, JourneyRejected) {
		errs["status"] = "is not a valid journey status"
	}
	if j.FromLocationID.IsNil() {
		errs["from_location_id"] = "is required"
	}
	if j.ToLocationID.IsNil() {
		errs["to_location_id"] = "is required"
	}
	return errs
}
