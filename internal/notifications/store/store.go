// Package store keeps notification records. The dispatcher only ever inserts;
// delivery workers only ever touch delivered_at and delivery_attempts, one
// row per UPDATE.
package store

import (
	"context"
	"sync"
	"time"

	"movetrack/internal/notifications/models"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
)

// InMemory is the process-local notification table.
type InMemory struct {
	mu     sync.RWMutex
	rows   []*models.Notification
	byID   map[id.NotificationID]*models.Notification
	dedups map[string]bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[id.NotificationID]*models.Notification),
		dedups: make(map[string]bool),
	}
}

// Create inserts n unless its dedup key already exists. created reports
// whether a row was written.
func (s *InMemory) Create(_ context.Context, n *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedups[n.DedupKey] {
		return false, nil
	}
	c := *n
	s.rows = append(s.rows, &c)
	s.byID[c.ID] = &c
	s.dedups[c.DedupKey] = true
	return true, nil
}

// PendingDeliveries returns undelivered notifications with fewer than
// maxAttempts attempts, oldest first.
func (s *InMemory) PendingDeliveries(_ context.Context, maxAttempts, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.rows {
		if n.Delivered() || n.DeliveryAttempts >= maxAttempts {
			continue
		}
		out = append(out, clone(n))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkDelivered(_ context.Context, nID id.NotificationID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[nID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if n.DeliveredAt == nil {
		at = at.UTC().Truncate(time.Microsecond)
		n.DeliveredAt = &at
	}
	n.DeliveryAttempts++
	return nil
}

func (s *InMemory) RecordFailure(_ context.Context, nID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[nID]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.DeliveryAttempts++
	return nil
}

// ForTopic lists the notifications of a topic in creation order.
func (s *InMemory) ForTopic(_ context.Context, topic id.Ref) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.rows {
		if n.Topic == topic {
			out = append(out, clone(n))
		}
	}
	return out, nil
}

func clone(n *models.Notification) *models.Notification {
	c := *n
	if n.DeliveredAt != nil {
		at := *n.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}
