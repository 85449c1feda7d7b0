package entities

import (
	"time"

	id "movetrack/pkg/domain"
)

const (
	PERInProgress = "in_progress"
	PERCompleted  = "completed"
	PERConfirmed  = "confirmed"
)

// PersonEscortRecord is the per-move record of a person's handling in custody.
type PersonEscortRecord struct {
	ID                id.EntityID   `json:"id"`
	MoveID            id.EntityID   `json:"move_id,omitzero"`
	State             string        `json:"status"`
	SupplierID        id.SupplierID `json:"supplier_id,omitzero"`
	CourtHearings     int           `json:"court_hearings,omitempty"`
	LastCourtOutcome  string        `json:"last_court_outcome,omitempty"`
	MedicalAidEvents  int           `json:"medical_aid_events,omitempty"`
	LastMedicalAidAt  time.Time     `json:"last_medical_aid_at,omitzero"`
	GenericEventCount int           `json:"generic_event_count,omitempty"`
	DockLocationID    id.LocationID `json:"dock_location_id,omitzero"`
	TakenToDockAt     time.Time     `json:"taken_to_dock_at,omitzero"`
}

func (p *PersonEscortRecord) Ref() id.Ref    { return id.Ref{Kind: id.KindPersonEscortRecord, ID: p.ID} }
func (p *PersonEscortRecord) Status() string { return p.State }

func (p *PersonEscortRecord) Clone() Eventable {
	c := *p
	return &c
}

func (p *PersonEscortRecord) Suppliers() []id.SupplierID {
	if p.SupplierID.IsNil() {
		return nil
	}
	return []id.SupplierID{p.SupplierID}
}

func (p *PersonEscortRecord) Validate() map[string]string {
	errs := map[string]string{}
	if !oneOf(p.State, PERInProgress, PERCompleted, PERConfirmed) {
		errs["status"] = "is not a valid person escort record status"
	}
	if p.CourtHearings < 0 || p.MedicalAidEvents < 0 {
		errs["counters"] = "must not be negative"
	}
	return errs
}
