package kafka

import (
	"AgentOffice/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher mirrors dashboard events onto a Kafka topic.
type EventPublisher struct {
	writer MessageWriter
}

// NewEventPublisher creates a publisher writing to the configured events topic.
func NewEventPublisher(client *Client) *EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(client.Config.Brokers...),
		Topic:        client.Config.EventsTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return &EventPublisher{writer: writer}
}

// NewEventPublisherWithWriter wraps an existing writer.
func NewEventPublisherWithWriter(w MessageWriter) *EventPublisher {
	return &EventPublisher{writer: w}
}

// Publish serialises the event and writes it keyed by its type.
func (p *EventPublisher) Publish(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.Type), Value: data}); err != nil {
		return fmt.Errorf("write event to kafka: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}
