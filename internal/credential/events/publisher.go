// Package events publishes credential verification events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"iam/internal/credential/models"
	"iam/internal/platform/kafka/producer"
)

// EventType is set as the event_type header on every record.
const EventType = "credential.verified"

// Producer is the subset of the Kafka producer the publisher needs.
type Producer interface {
	ProduceAsync(msg *producer.Message) error
}

// Publisher encodes verification events as JSON records keyed by provider.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(p Producer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic}
}

// Publish hands the event to the producer without waiting for delivery.
func (p *Publisher) Publish(_ context.Context, event *models.VerificationEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode verification event: %w", err)
	}

	headers := map[string]string{
		"event_type": EventType,
		"event_id":   event.ID.String(),
	}
	if event.RequestID != "" {
		headers["request_id"] = event.RequestID
	}

	if err := p.producer.ProduceAsync(&producer.Message{
		Topic:   p.topic,
		Key:     []byte(event.Provider),
		Value:   value,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("publish verification event: %w", err)
	}
	return nil
}
