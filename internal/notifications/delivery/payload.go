package delivery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"movetrack/internal/entities"
	"movetrack/internal/notifications/models"
)

// Payload is the body posted to webhook subscribers.
type Payload struct {
	ID        string      `json:"id"`
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      PayloadData `json:"data"`
}

type PayloadData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	// Attributes is the topic's current snapshot, absent once the topic is gone.
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// Message is everything a Sender needs for one notification.
type Message struct {
	Notification *models.Notification
	Subscription *models.Subscription
	Payload      Payload
	// Body is the canonical JSON encoding of Payload; webhook signatures
	// are computed over exactly these bytes.
	Body []byte
}

func newMessage(n *models.Notification, sub *models.Subscription, topic entities.Eventable, now time.Time) (Message, error) {
	p := Payload{
		ID:        n.ID.String(),
		EventType: n.EventType,
		Timestamp: now.UTC().Truncate(time.Second),
		Data: PayloadData{
			Type: string(n.Topic.Kind),
			ID:   n.Topic.ID.String(),
		},
	}
	if topic != nil {
		snapshot, err := entities.Encode(topic)
		if err != nil {
			return Message{}, err
		}
		p.Data.Attributes = snapshot
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	body, err := jcs.Transform(raw)
	if err != nil {
		return Message{}, fmt.Errorf("canonicalize payload: %w", err)
	}
	return Message{Notification: n, Subscription: sub, Payload: p, Body: body}, nil
}
