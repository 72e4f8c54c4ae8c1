package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aq2208/gorder-pickup/internal/logging"
)

// consumerChannel is the part of *amqp.Channel the Router needs.
type consumerChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Router manages multiple consumers (one per registered queue) on a single AMQP channel.
type Router struct {
	ch            consumerChannel
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	registrations []registration
}

type registration struct {
	queueName   string
	handler     Handler
	consumerTag string
}

// --- Options ---

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.prefetch = n
		}
	}
}
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }

// NewRouter constructs a Router. Defaults: prefetch=50, timeout=10s, requeueOnErr=true.
func NewRouter(ch consumerChannel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		prefetch:     50,
		callTimeout:  10 * time.Second,
		requeueOnErr: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates a queue with a handler. Call multiple times for multiple queues.
func (r *Router) Register(queueName string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Start begins consuming; non-blocking (spawns one goroutine per queue).
// Handler contexts derive from ctx, so cancelling it aborts in-flight work.
// QoS (prefetch) is set per-channel and applies to all consumers on this channel.
func (r *Router) Start(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	for _, reg := range r.registrations {
		deliveries, err := r.ch.Consume(
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}
		go r.consume(ctx, reg, deliveries)
	}
	return nil
}

func (r *Router) consume(ctx context.Context, reg registration, msgs <-chan amqp.Delivery) {
	log := logging.New("rabbitmq").With("queue", reg.queueName, "tag", reg.consumerTag)
	for d := range msgs {
		r.dispatch(ctx, log, reg.handler, d)
	}
	log.Info("consumer stopped")
}

func (r *Router) dispatch(ctx context.Context, log *slog.Logger, h Handler, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	err := h.Handle(hctx, d)
	cancel()

	if err == nil {
		_ = d.Ack(false)
		return
	}
	if errors.Is(err, ErrPoison) {
		log.Warn("dropping poison message", "rk", d.RoutingKey, "err", err)
		_ = d.Nack(false, false)
		return
	}
	log.Error("handler error", "rk", d.RoutingKey, "err", err, "requeue", r.requeueOnErr)
	_ = d.Nack(false, r.requeueOnErr)
}
