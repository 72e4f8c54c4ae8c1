package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/logging"
)

// broadcastParallelism bounds concurrent Issue calls during a broadcast.
const broadcastParallelism = 8

type IssueCouponInput struct {
	CustomerID  string
	Code        string
	Description string
	Kind        domain.DiscountKind
	Value       decimal.Decimal
	Origin      domain.CouponOrigin
}

type CouponLedgerDeps struct {
	Coupons   CouponRepo
	Customers CustomerDirectory
	Notifier  Notifier
	Metrics   Metrics
	Retry     RetryPolicy
	Clock     func() time.Time
	NewID     func() string
}

// CouponLedger owns per-customer coupon instances keyed by (customer id, code).
type CouponLedger struct {
	coupons   CouponRepo
	customers CustomerDirectory
	notifier  Notifier
	metrics   Metrics
	retry     RetryPolicy
	clock     func() time.Time
	newID     func() string
}

func NewCouponLedger(deps CouponLedgerDeps) *CouponLedger {
	l := &CouponLedger{
		coupons:   deps.Coupons,
		customers: deps.Customers,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		retry:     deps.Retry,
		clock:     deps.Clock,
		newID:     deps.NewID,
	}
	if l.metrics == nil {
		l.metrics = noopMetrics{}
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.newID == nil {
		l.newID = uuid.NewString
	}
	if l.retry.Attempts == 0 {
		l.retry = DefaultRetryPolicy()
	}
	return l
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem consumes the customer's coupon and returns the discount it grants on subtotal.
// At most one of any number of concurrent calls for the same instance succeeds.
func (l *CouponLedger) Redeem(ctx context.Context, customerID, code string, subtotal decimal.Decimal) (decimal.Decimal, *domain.Coupon, error) {
	code = normalizeCode(code)
	if code == "" {
		return decimal.Zero, nil, ErrCouponInvalid
	}
	if subtotal.IsNegative() {
		return decimal.Zero, nil, validationErr(errors.New("subtotal must not be negative"))
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		var cur *domain.Coupon
		err := l.retry.Do(ctx, func() error {
			var err error
			cur, err = l.coupons.GetCoupon(ctx, customerID, code)
			return err
		})
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, nil, ErrCouponInvalid
		}
		if err != nil {
			return decimal.Zero, nil, err
		}
		switch {
		case cur.Used:
			return decimal.Zero, nil, ErrCouponAlreadyUsed
		case !cur.Active:
			return decimal.Zero, nil, ErrCouponInactive
		}

		next := cur.Clone()
		discount := next.Discount(subtotal)
		now := l.clock().UTC()
		next.Used = true
		next.UsedAt = &now

		err = l.retry.Do(ctx, func() error { return l.coupons.SaveCoupon(ctx, next, cur.Version) })
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return decimal.Zero, nil, err
		}
		l.metrics.CouponRedeemed(string(next.Kind))
		return discount, next, nil
	}
	return decimal.Zero, nil, ErrContention
}

// Issue creates the coupon unless the customer already holds one under the same code,
// in which case it returns the existing instance and created=false.
func (l *CouponLedger) Issue(ctx context.Context, in IssueCouponInput) (*domain.Coupon, bool, error) {
	c := &domain.Coupon{
		ID:          l.newID(),
		CustomerID:  in.CustomerID,
		Code:        normalizeCode(in.Code),
		Description: in.Description,
		Kind:        in.Kind,
		Value:       in.Value,
		Active:      true,
		Origin:      in.Origin,
		CreatedAt:   l.clock().UTC(),
	}
	if c.Origin == "" {
		c.Origin = domain.OriginManual
	}
	if in.CustomerID == "" {
		return nil, false, validationErr(errors.New("customer id required"))
	}
	if err := c.Validate(); err != nil {
		return nil, false, validationErr(err)
	}

	existing, err := l.lookup(ctx, c.CustomerID, c.Code)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	err = l.retry.Do(ctx, func() error { return l.coupons.SaveCoupon(ctx, c, 0) })
	if errors.Is(err, ErrVersionConflict) {
		// lost an insert race on the natural key; the winner's instance stands
		existing, err := l.lookup(ctx, c.CustomerID, c.Code)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, ErrContention
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	l.metrics.CouponIssued(string(c.Origin))
	l.notify(ctx, c)
	return c, true, nil
}

func (l *CouponLedger) lookup(ctx context.Context, customerID, code string) (*domain.Coupon, error) {
	var c *domain.Coupon
	err := l.retry.Do(ctx, func() error {
		var err error
		c, err = l.coupons.GetCoupon(ctx, customerID, code)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (l *CouponLedger) notify(ctx context.Context, c *domain.Coupon) {
	if l.notifier == nil {
		return
	}
	n := Notification{
		Kind:       NotifyCouponIssued,
		CustomerID: c.CustomerID,
		Data: map[string]string{
			"code":   c.Code,
			"kind":   string(c.Kind),
			"value":  c.Value.String(),
			"origin": string(c.Origin),
		},
		At: l.clock().UTC(),
	}
	if err := l.notifier.Notify(ctx, n); err != nil {
		logging.FromCtx(ctx).Warn("coupon notification failed", "customer_id", c.CustomerID, "code", c.Code, "err", err)
	}
}

type BroadcastResult struct {
	Customers int `json:"customers"`
	Issued    int `json:"issued"`
}

// Broadcast issues a manual coupon to every known customer. Customers already holding
// the code are skipped by Issue's idempotence.
func (l *CouponLedger) Broadcast(ctx context.Context, in IssueCouponInput) (BroadcastResult, error) {
	if l.customers == nil {
		return BroadcastResult{}, errors.New("coupon ledger: customer directory not configured")
	}
	var ids []string
	err := l.retry.Do(ctx, func() error {
		var err error
		ids, err = l.customers.ListCustomerIDs(ctx)
		return err
	})
	if err != nil {
		return BroadcastResult{}, err
	}

	var issued atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastParallelism)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			one := in
			one.CustomerID = id
			one.Origin = domain.OriginManual
			_, created, err := l.Issue(gctx, one)
			if err != nil {
				return fmt.Errorf("issue %s to %s: %w", one.Code, id, err)
			}
			if created {
				issued.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	res := BroadcastResult{Customers: len(ids), Issued: int(issued.Load())}
	logging.FromCtx(ctx).Info("coupon broadcast", "code", normalizeCode(in.Code), "customers", res.Customers, "issued", res.Issued)
	return res, err
}

// SetActive flips the promotion on or off for every holder of code.
func (l *CouponLedger) SetActive(ctx context.Context, code string, active bool) (int64, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, validationErr(domain.ErrMissingCouponCode)
	}
	var n int64
	err := l.retry.Do(ctx, func() error {
		var err error
		n, err = l.coupons.SetActiveByCode(ctx, code, active)
		return err
	})
	if err != nil {
		return 0, err
	}
	logging.FromCtx(ctx).Info("coupon activation changed", "code", code, "active", active, "instances", n)
	return n, nil
}

func (l *CouponLedger) Activate(ctx context.Context, code string) (int64, error) {
	return l.SetActive(ctx, code, true)
}

func (l *CouponLedger) Deactivate(ctx context.Context, code string) (int64, error) {
	return l.SetActive(ctx, code, false)
}

func (l *CouponLedger) ListCoupons(ctx context.Context, customerID string) ([]*domain.Coupon, error) {
	var out []*domain.Coupon
	err := l.retry.Do(ctx, func() error {
		var err error
		out, err = l.coupons.ListCouponsForCustomer(ctx, customerID)
		return err
	})
	return out, err
}
