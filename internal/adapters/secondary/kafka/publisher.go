package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// Publisher writes ticket lifecycle events to a Kafka audit topic. Messages
// are keyed by ticket number so all events for one ticket land on the same
// partition in order.
type Publisher struct {
	writer *kafka.Writer
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed event publisher.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish sends one event to the audit topic.
func (p *Publisher) Publish(ctx context.Context, event domain.TicketEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TicketNumber),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher satisfies the publisher port when no broker is configured.
type NoopPublisher struct{}

var _ ports.EventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, domain.TicketEvent) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
