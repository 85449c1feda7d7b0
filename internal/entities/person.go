package entities

import (
	"time"

	id "movetrack/pkg/domain"
)

type Person struct {
	ID             id.EntityID `json:"id"`
	FirstNames     string      `json:"first_names,omitempty"`
	LastName       string      `json:"last_name,omitempty"`
	IncidentCount  int         `json:"incident_count,omitempty"`
	LastIncidentAt time.Time   `json:"last_incident_at,omitzero"`
}

func (p *Person) Ref() id.Ref { return id.Ref{Kind: id.KindPerson, ID: p.ID} }

// Status is empty: people have no lifecycle.
func (p *Person) Status() string { return "" }

func (p *Person) Clone() Eventable {
	c := *p
	return &c
}

func (p *Person) Validate() map[string]string {
	errs := map[string]string{}
	if p.IncidentCount < 0 {
		errs["incident_count"] = "must not be negative"
	}
	return errs
}
