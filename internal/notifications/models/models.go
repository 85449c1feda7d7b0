package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "movetrack/pkg/domain"
)

// Action is the logical outcome of an event application or entity lifecycle step.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionUpdateStatus Action = "update_status"
	ActionDestroy      Action = "destroy"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionUpdateStatus, ActionDestroy:
		return true
	}
	return false
}

// Task asks the dispatcher to prepare notifications for a topic. Its ID is
// assigned at commit and stays stable across queue redeliveries.
type Task struct {
	ID        uuid.UUID `json:"id"`
	Topic     id.Ref    `json:"topic"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

func NewTask(topic id.Ref, action Action, now time.Time) *Task {
	return &Task{ID: uuid.New(), Topic: topic, Action: action, CreatedAt: now}
}

type Type string

const (
	TypeWebhook Type = "webhook"
	TypeEmail   Type = "email"
)

// Subscription is a supplier's delivery preference.
type Subscription struct {
	ID           id.SubscriptionID `json:"id" yaml:"id"`
	SupplierID   id.SupplierID     `json:"supplier_id" yaml:"supplier_id"`
	CallbackURL  string            `json:"callback_url,omitempty" yaml:"callback_url"`
	EmailAddress string            `json:"email_address,omitempty" yaml:"email_address"`
	Username     string            `json:"username,omitempty" yaml:"username"`
	Secret       string            `json:"-" yaml:"secret"`
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Discarded    bool              `json:"discarded" yaml:"discarded"`
}

// Kept reports whether the subscription has not been soft-deleted.
func (s Subscription) Kept() bool { return !s.Discarded }

// Active reports whether notifications may be created for the subscription.
func (s Subscription) Active() bool { return s.Kept() && s.Enabled }

// Notification is one delivery obligation.
type Notification struct {
	ID               id.NotificationID `json:"id"`
	SubscriptionID   id.SubscriptionID `json:"subscription_id"`
	Topic            id.Ref            `json:"topic"`
	Type             Type              `json:"notification_type"`
	EventType        string            `json:"event_type"`
	DedupKey         string            `json:"-"`
	DeliveredAt      *time.Time        `json:"delivered_at"`
	DeliveryAttempts int               `json:"delivery_attempts"`
	CreatedAt        time.Time         `json:"created_at"`
}

func (n Notification) Delivered() bool { return n.DeliveredAt != nil }

// EventType maps an action on a topic kind to the delivered event type,
// e.g. update_status on a Move becomes update_move_status.
func EventType(kind id.EventableKind, action Action) string {
	noun := snake(string(kind))
	switch action {
	case ActionUpdateStatus:
		return "update_" + noun + "_status"
	default:
		return string(action) + "_" + noun
	}
}

// DedupKey identifies a notification within one task.
func DedupKey(taskID uuid.UUID, subscriptionID id.SubscriptionID, t Type) string {
	return taskID.String() + ":" + subscriptionID.String() + ":" + string(t)
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
