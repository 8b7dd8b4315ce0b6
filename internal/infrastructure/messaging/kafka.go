// Package messaging delivers outbox events to Kafka.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"pharmadesk/internal/infrastructure/storage/postgres"
)

// Header names set on every message.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements postgres.OutboxHandler. Messages are keyed by
// aggregate id so events of one invoice or product keep their order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

var _ postgres.OutboxHandler = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
		topic: topic,
	}
}

// Handle implements postgres.OutboxHandler.
func (p *KafkaPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	if err := p.writer.WriteMessages(ctx, toMessage(msg)); err != nil {
		return fmt.Errorf("kafka write %s: %w", msg.EventType, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(msg *postgres.OutboxMessage) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(msg.ID.String())},
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderAggregateType, Value: []byte(msg.AggregateType)},
		},
	}
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
