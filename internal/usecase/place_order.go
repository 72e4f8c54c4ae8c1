package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/logging"
)

type PlaceOrderInput struct {
	CustomerID     string
	Items          []domain.LineItem
	CouponCode     string
	Class          domain.Class
	IdempotencyKey string
}

type PlaceOrderOutput struct {
	Order *domain.Order
	// MilestoneCoupon is set when this order pushed lifetime spend across a milestone.
	MilestoneCoupon *domain.Coupon
	// Replayed is true when the idempotency key matched an earlier placement.
	Replayed bool
}

type OrderServiceDeps struct {
	Orders      OrderRepo
	Customers   CustomerDirectory
	Tokens      PickupTokens
	Coupons     *CouponLedger
	Loyalty     *LoyaltyLedger
	Idempotency IdempotencyStore // optional
	Cache       OrderCache       // optional
	Events      EventPublisher   // optional
	Notifier    Notifier         // optional
	Metrics     Metrics          // optional
	Retry       RetryPolicy
	Clock       func() time.Time
	NewID       func() string
}

// OrderService owns the order state machine and orchestrates the token codec and ledgers.
type OrderService struct {
	orders    OrderRepo
	customers CustomerDirectory
	tokens    PickupTokens
	coupons   *CouponLedger
	loyalty   *LoyaltyLedger
	idem      IdempotencyStore
	cache     OrderCache
	events    EventPublisher
	notifier  Notifier
	metrics   Metrics
	retry     RetryPolicy
	clock     func() time.Time
	newID     func() string
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Orders == nil || deps.Customers == nil || deps.Tokens == nil {
		return nil, errors.New("order service: orders, customers and tokens are required")
	}
	if deps.Coupons == nil || deps.Loyalty == nil {
		return nil, errors.New("order service: coupon and loyalty ledgers are required")
	}
	s := &OrderService{
		orders:    deps.Orders,
		customers: deps.Customers,
		tokens:    deps.Tokens,
		coupons:   deps.Coupons,
		loyalty:   deps.Loyalty,
		idem:      deps.Idempotency,
		cache:     deps.Cache,
		events:    deps.Events,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		retry:     deps.Retry,
		clock:     deps.Clock,
		newID:     deps.NewID,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.retry.Attempts == 0 {
		s.retry = DefaultRetryPolicy()
	}
	return s, nil
}

// PlaceOrder validates the cart, redeems the coupon, persists the order with its pickup
// token and then updates loyalty on a best-effort basis.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	log := logging.FromCtx(ctx)

	if in.Class == "" {
		in.Class = domain.ClassReal
	}
	if !in.Class.Valid() {
		return PlaceOrderOutput{}, validationErr(domain.ErrInvalidClass)
	}
	if in.CustomerID == "" {
		return PlaceOrderOutput{}, validationErr(errors.New("customer id required"))
	}
	if err := domain.ValidateItems(in.Items); err != nil {
		return PlaceOrderOutput{}, validationErr(err)
	}
	if in.Class == domain.ClassDemo && in.CouponCode != "" {
		return PlaceOrderOutput{}, validationErr(errors.New("coupons cannot be applied to demo orders"))
	}

	// Fast path: idempotency recall
	if s.idem != nil && in.IdempotencyKey != "" {
		if id, ok, _ := s.idem.Recall(ctx, in.CustomerID, in.IdempotencyKey); ok {
			o, err := s.GetOrder(ctx, id)
			if err != nil {
				return PlaceOrderOutput{}, err
			}
			return PlaceOrderOutput{Order: o, Replayed: true}, nil
		}
		ok, err := s.idem.TryLock(ctx, in.CustomerID, in.IdempotencyKey)
		if err != nil {
			return PlaceOrderOutput{}, fmt.Errorf("%w: idempotency lock: %v", ErrUnavailable, err)
		}
		if !ok {
			return PlaceOrderOutput{}, ErrDuplicate
		}
	}

	out, err := s.place(ctx, in)
	if s.idem != nil && in.IdempotencyKey != "" {
		if err != nil {
			_ = s.idem.Release(ctx, in.CustomerID, in.IdempotencyKey)
		} else {
			if rerr := s.idem.Remember(ctx, in.CustomerID, in.IdempotencyKey, out.Order.ID); rerr != nil {
				// the key stays locked without a mapping, so retries get ErrDuplicate until it expires
				log.Warn("idempotency key not mapped to order", "customer_id", in.CustomerID, "idempotency_key", in.IdempotencyKey, "order_id", out.Order.ID, "err", rerr)
			}
		}
	}
	if err != nil {
		log.Info("order placement rejected", "customer_id", in.CustomerID, "code", Code(err), "err", err)
		return PlaceOrderOutput{}, err
	}
	return out, nil
}

func (s *OrderService) place(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	log := logging.FromCtx(ctx)

	var exists bool
	err := s.retry.Do(ctx, func() error {
		var err error
		exists, err = s.customers.Exists(ctx, in.CustomerID)
		return err
	})
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if !exists {
		return PlaceOrderOutput{}, ErrCustomerNotFound
	}

	now := s.clock().UTC()
	subtotal := domain.Subtotal(in.Items)
	o := &domain.Order{
		ID:         s.newID(),
		CustomerID: in.CustomerID,
		Items:      append([]domain.LineItem(nil), in.Items...),
		Subtotal:   subtotal,
		Total:      subtotal,
		Status:     domain.StatusPending,
		Class:      in.Class,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if in.CouponCode != "" {
		discount, coupon, err := s.coupons.Redeem(ctx, in.CustomerID, in.CouponCode, subtotal)
		if err != nil {
			return PlaceOrderOutput{}, err
		}
		discount = decimal.Min(discount, subtotal)
		o.CouponCode = coupon.Code
		o.Discount = &discount
		o.Total = subtotal.Sub(discount)
	}

	demo := in.Class == domain.ClassDemo
	if demo {
		o.Status = domain.StatusCollected
	} else {
		pts := s.loyalty.PointsPerOrder()
		o.PointsEarned = &pts
	}

	token, err := s.tokens.Issue(o.ID, demo)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	o.PickupToken = token

	if err := s.retry.Do(ctx, func() error { return s.orders.SaveOrder(ctx, o, 0) }); err != nil {
		if o.CouponCode != "" {
			log.Error("coupon consumed but order not stored", "customer_id", o.CustomerID, "code", o.CouponCode, "order_id", o.ID, "err", err)
		}
		return PlaceOrderOutput{}, err
	}

	log.Info("order placed", "order_id", o.ID, "customer_id", o.CustomerID, "class", o.Class, "total", o.Total.StringFixed(2))
	s.metrics.OrderPlaced(string(o.Class))
	s.afterWrite(ctx, o, "", EventOrderPlaced)

	out := PlaceOrderOutput{Order: o}
	if !demo {
		// the order is the record of truth; loyalty is advisory and must not undo it
		res, err := s.loyalty.RecordSpend(ctx, o.CustomerID, o.Total)
		if err != nil {
			s.metrics.LoyaltyUpdateFailed()
			log.Error("loyalty update failed", "order_id", o.ID, "customer_id", o.CustomerID, "amount", o.Total.String(), "err", err)
		} else if res.Coupon != nil {
			out.MilestoneCoupon = res.Coupon
		}
	}
	return out, nil
}
