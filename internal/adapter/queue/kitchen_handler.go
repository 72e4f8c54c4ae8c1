package queue

import (
	"context"
	"fmt"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/logging"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

const commandPrepared = "prepared"

// OrderPreparer is the slice of the order service the kitchen display drives.
type OrderPreparer interface {
	AdvanceToPrepared(ctx context.Context, orderID string) (*domain.Order, error)
}

// KitchenHandler turns kitchen display commands into order transitions.
type KitchenHandler struct {
	Orders OrderPreparer
}

func NewKitchenHandler(orders OrderPreparer) *KitchenHandler {
	return &KitchenHandler{Orders: orders}
}

// HandleCommand is intended to be used with the JSON adapter (queue.JSONHandler[KitchenCommand]).
// Business rejections are acked: redelivering them cannot change the outcome.
func (h *KitchenHandler) HandleCommand(ctx context.Context, msg usecase.KitchenCommand) error {
	if msg.Command != commandPrepared || msg.OrderID == "" {
		return fmt.Errorf("%w: kitchen command %q for order %q", ErrPoison, msg.Command, msg.OrderID)
	}
	_, err := h.Orders.AdvanceToPrepared(ctx, msg.OrderID)
	if err == nil {
		return nil
	}
	switch usecase.KindOf(err) {
	case usecase.KindInternal, usecase.KindUnavailable:
		return err
	}
	logging.FromCtx(ctx).Warn("kitchen command rejected", "order_id", msg.OrderID, "code", usecase.Code(err))
	return nil
}
