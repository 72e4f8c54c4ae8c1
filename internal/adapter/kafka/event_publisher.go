package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/aq2208/gorder-pickup/internal/usecase"
)

const defaultEventsTopic = "pickup.order-events"

// EventPublisher implements usecase.EventPublisher on a Kafka topic.
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewEventPublisher(p sarama.SyncProducer, topic string) *EventPublisher {
	if topic == "" {
		topic = defaultEventsTopic
	}
	return &EventPublisher{producer: p, topic: topic}
}

func (p *EventPublisher) PublishOrderEvent(ctx context.Context, ev usecase.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(ev.OrderID),
		Value:   sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{{Key: []byte("type"), Value: []byte(ev.Type)}},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

func (p *EventPublisher) Close() error { return p.producer.Close() }

var _ usecase.EventPublisher = (*EventPublisher)(nil)
