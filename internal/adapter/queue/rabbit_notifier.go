package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aq2208/gorder-pickup/configs"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

const (
	defaultExchange     = "pickup.events"
	defaultKitchenQueue = "pickup.kitchen.q"
	kitchenRoutingKey   = "kitchen.#"
)

// publisher is the part of *amqp.Channel the notifier needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitNotifier implements usecase.Notifier. Each notification is routed by its kind
// (order.ready, coupon.issued, ...) so delivery services bind only what they send.
type RabbitNotifier struct {
	ch       publisher
	exchange string
}

func NewRabbitNotifier(ch publisher, exchange string) *RabbitNotifier {
	if exchange == "" {
		exchange = defaultExchange
	}
	return &RabbitNotifier{ch: ch, exchange: exchange}
}

func (p *RabbitNotifier) Notify(ctx context.Context, n usecase.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Timestamp:    n.At,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		n.Kind,     // routing key
		false,      // mandatory
		false,      // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish %s: %w", n.Kind, err)
	}
	return nil
}

var _ usecase.Notifier = (*RabbitNotifier)(nil)

// DeclareTopology sets up the exchange and the kitchen command queue once at startup.
// Returns the kitchen queue name.
func DeclareTopology(ch *amqp.Channel, c configs.Rabbit) (string, error) {
	exchange := c.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}
	queue := c.KitchenQueue
	if queue == "" {
		queue = defaultKitchenQueue
	}

	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return "", fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare queue
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}

	// 3. bind queue → exchange
	if err := ch.QueueBind(q.Name, kitchenRoutingKey, exchange, false, nil); err != nil {
		return "", fmt.Errorf("queue bind: %w", err)
	}
	return q.Name, nil
}
