package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/aq2208/gorder-pickup/internal/logging"
)

// ErrSkip tells the consumer to mark a message it cannot process and move on.
var ErrSkip = errors.New("skip message")

// HandlerFunc processes a decoded message.
type HandlerFunc[T any] func(ctx context.Context, msg T) error

// DefaultRedeliveryDelay is the pause before a failed message is consumed again.
const DefaultRedeliveryDelay = time.Second

// Consumer consumes topics with a single handler.
type Consumer[T any] struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc[T]
	Logger *slog.Logger // optional
	// RedeliveryDelay throttles the restart after a handler failure.
	RedeliveryDelay time.Duration
}

func NewConsumer[T any](group sarama.ConsumerGroup, topics []string, h HandlerFunc[T]) *Consumer[T] {
	return &Consumer[T]{
		Group:           group,
		Topics:          topics,
		Handle:          h,
		Logger:          logging.New("kafka"),
		RedeliveryDelay: DefaultRedeliveryDelay,
	}
}

// Start blocks until ctx is cancelled or the group fails.
func (c *Consumer[T]) Start(ctx context.Context) error {
	handler := &cgHandler[T]{handle: c.Handle, logger: c.Logger, redeliveryDelay: c.RedeliveryDelay}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			return err
		}
		// When Consume returns, it’s because ctx was cancelled or a rebalance happened.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler[T any] struct {
	handle          HandlerFunc[T]
	logger          *slog.Logger
	redeliveryDelay time.Duration
}

func (h *cgHandler[T]) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler[T]) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler[T]) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var v T
		if err := json.Unmarshal(msg.Value, &v); err != nil {
			h.log().Warn("kafka decode error", "topic", msg.Topic, "offset", msg.Offset, "err", err)
			// mark to avoid reprocessing poison
			sess.MarkMessage(msg, "decode-error")
			continue
		}
		err := h.handle(sess.Context(), v)
		switch {
		case err == nil:
			sess.MarkMessage(msg, "")
		case errors.Is(err, ErrSkip):
			h.log().Warn("kafka message skipped", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset, "err", err)
			sess.MarkMessage(msg, "skipped")
		default:
			// Offsets are cumulative, so marking any later message would commit past this
			// one. Rewind and end the claim; the session restarts from the failed offset.
			h.log().Error("kafka handler error, redelivering", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset, "err", err)
			sess.ResetOffset(msg.Topic, msg.Partition, msg.Offset, "")
			h.wait(sess.Context())
			return fmt.Errorf("kafka: %s/%d at offset %d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
	}
	return nil
}

func (h *cgHandler[T]) wait(ctx context.Context) {
	if h.redeliveryDelay <= 0 {
		return
	}
	t := time.NewTimer(h.redeliveryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (h *cgHandler[T]) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return logging.Base()
}
