package usecase

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/logging"
)

// AdvanceToPrepared marks a pending order as ready for pickup.
func (s *OrderService) AdvanceToPrepared(ctx context.Context, orderID string) (*domain.Order, error) {
	var prev domain.Status
	o, err := s.mutate(ctx, orderID, func(o *domain.Order) error {
		prev = o.Status
		if !o.Transition(domain.StatusPrepared, s.clock().UTC()) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, domain.StatusPrepared)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, o, prev, EventOrderPrepared)
	s.notify(ctx, o, NotifyOrderReady, nil)
	return o, nil
}

// VerifyAndCollect redeems a scanned pickup token. Of any number of concurrent scans of
// the same token exactly one succeeds; the rest get ErrAlreadyCollected.
func (s *OrderService) VerifyAndCollect(ctx context.Context, token string) (*domain.Order, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.rejectScan(ctx, "", err)
		return nil, err
	}

	var prev domain.Status
	o, err := s.mutate(ctx, claims.OrderID, func(o *domain.Order) error {
		prev = o.Status
		if claims.Demo || o.Class == domain.ClassDemo {
			return ErrDemoTokenRejected
		}
		if o.PickupToken != token {
			return ErrTokenTampered
		}
		switch o.Status {
		case domain.StatusCollected:
			return ErrAlreadyCollected
		case domain.StatusCancelled:
			return fmt.Errorf("%w: order was cancelled", ErrInvalidTransition)
		}
		if !o.Transition(domain.StatusCollected, s.clock().UTC()) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, domain.StatusCollected)
		}
		return nil
	})
	if err != nil {
		s.rejectScan(ctx, claims.OrderID, err)
		return nil, err
	}
	logging.FromCtx(ctx).Info("order collected", "order_id", o.ID, "customer_id", o.CustomerID)
	s.afterWrite(ctx, o, prev, EventOrderCollected)
	s.notify(ctx, o, NotifyOrderCollected, nil)
	return o, nil
}

// CancelOrder cancels a pending order on behalf of its owner and records the refund.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	var prev domain.Status
	o, err := s.mutate(ctx, orderID, func(o *domain.Order) error {
		prev = o.Status
		if o.CustomerID != customerID {
			return ErrNotOwner
		}
		if !o.Cancel(s.clock().UTC()) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, domain.StatusCancelled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromCtx(ctx).Info("order cancelled", "order_id", o.ID, "refund", o.Refund.StringFixed(2))
	s.afterWrite(ctx, o, prev, EventOrderCancelled)
	s.notify(ctx, o, NotifyOrderCancelled, map[string]string{"refund": o.Refund.StringFixed(2)})
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o *domain.Order
	err := s.retry.Do(ctx, func() error {
		var err error
		o, err = s.orders.GetOrder(ctx, orderID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// GetStatus answers from the status cache when possible.
func (s *OrderService) GetStatus(ctx context.Context, orderID string) (domain.Status, error) {
	if s.cache != nil {
		if st, ok, err := s.cache.GetStatus(ctx, orderID); err == nil && ok {
			return domain.Status(st), nil
		}
	}
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		_ = s.cache.SetStatus(ctx, o.ID, string(o.Status))
	}
	return o.Status, nil
}

// mutate is the order read-modify-write: fn edits a copy, which is saved only if the
// stored version is unchanged. A lost race reloads and re-runs fn against fresh state.
func (s *OrderService) mutate(ctx context.Context, orderID string, fn func(o *domain.Order) error) (*domain.Order, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		cur, err := s.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		err = s.retry.Do(ctx, func() error { return s.orders.SaveOrder(ctx, next, cur.Version) })
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, ErrContention
}

func (s *OrderService) rejectScan(ctx context.Context, orderID string, err error) {
	s.metrics.ScanRejected(Code(err))
	logging.FromCtx(ctx).Warn("pickup scan rejected", "order_id", orderID, "code", Code(err), "err", err)
}

// afterWrite runs the best-effort side effects of a committed order write.
func (s *OrderService) afterWrite(ctx context.Context, o *domain.Order, prev domain.Status, eventType string) {
	log := logging.FromCtx(ctx)
	if prev != "" {
		s.metrics.OrderTransitioned(string(o.Status))
	}
	if s.cache != nil {
		if err := s.cache.SetStatus(ctx, o.ID, string(o.Status)); err != nil {
			log.Warn("order status cache write failed", "order_id", o.ID, "err", err)
		}
	}
	if s.events != nil {
		ev := OrderEvent{
			Type:           eventType,
			OrderID:        o.ID,
			CustomerID:     o.CustomerID,
			Class:          string(o.Class),
			PreviousStatus: string(prev),
			Status:         string(o.Status),
			Total:          o.Total.StringFixed(2),
			CouponCode:     o.CouponCode,
			OccurredAt:     o.UpdatedAt,
		}
		if o.Refund != nil {
			ev.Refund = o.Refund.StringFixed(2)
		}
		if err := s.events.PublishOrderEvent(ctx, ev); err != nil {
			log.Warn("order event publish failed", "order_id", o.ID, "type", eventType, "err", err)
		}
	}
}

func (s *OrderService) notify(ctx context.Context, o *domain.Order, kind string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	n := Notification{Kind: kind, CustomerID: o.CustomerID, OrderID: o.ID, Data: data, At: s.clock().UTC()}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logging.FromCtx(ctx).Warn("notification request failed", "order_id", o.ID, "kind", kind, "err", err)
	}
}
