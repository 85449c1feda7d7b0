package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"movetrack/internal/events/models"
	"movetrack/internal/platform/config"
	id "movetrack/pkg/domain"
)

// ExternalAction is the record published for a post-commit side effect
// that another system carries out.
type ExternalAction struct {
	Action        string         `json:"action"`
	EventableType string         `json:"eventable_type"`
	EventableID   string         `json:"eventable_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	RequestedAt   time.Time      `json:"requested_at"`
}

// ActionPublisher publishes side effects to the external actions topic.
type ActionPublisher struct {
	client *kgo.Client
	topic  string
	now    func() time.Time
}

func NewActionPublisher(cfg config.Kafka) (*ActionPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.ActionsTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka action publisher: %w", err)
	}
	return &ActionPublisher{client: client, topic: cfg.ActionsTopic, now: time.Now}, nil
}

// Handle matches the runner's effect handler signature.
func (p *ActionPublisher) Handle(ctx context.Context, ref id.Ref, effect models.Effect) error {
	value, err := json.Marshal(ExternalAction{
		Action:        effect.Name,
		EventableType: string(ref.Kind),
		EventableID:   ref.ID.String(),
		Payload:       effect.Payload,
		RequestedAt:   p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s action: %w", effect.Name, err)
	}
	rec := &kgo.Record{Topic: p.topic, Key: []byte(ref.String()), Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s action: %w", effect.Name, err)
	}
	return nil
}

func (p *ActionPublisher) Close() {
	p.client.Close()
}
