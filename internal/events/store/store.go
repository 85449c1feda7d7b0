// Package store persists eventables, their event logs and the notification
// task outbox. Every write goes through Commit so the event, the projected
// entity and the outbox task land together or not at all.
package store

import (
	"maps"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	nmodels "movetrack/internal/notifications/models"
)

// Commit is one atomic unit of work.
type Commit struct {
	// Event is appended to the log; its Seq is assigned by the store.
	Event *models.Event
	// Entity replaces the persisted snapshot.
	Entity entities.Eventable
	// ExpectedVersion must match the persisted lock_version.
	ExpectedVersion int64
	// Task is written to the outbox when non-nil.
	Task *nmodels.Task
}

func copyEvent(ev *models.Event) *models.Event {
	c := *ev
	c.Details = maps.Clone(ev.Details)
	return &c
}
