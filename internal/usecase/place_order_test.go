package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/logging"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

func TestPlaceOrderAppliesCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.manualCoupon(t, "alice", "save20", domain.DiscountPercentage, "20")

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{
		CustomerID: "alice",
		Items:      items("15.00", 3),
		CouponCode: "SAVE20",
	})
	require.NoError(t, err)

	o := out.Order
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, "45.00", o.Subtotal.StringFixed(2))
	require.NotNil(t, o.Discount)
	assert.Equal(t, "9.00", o.Discount.StringFixed(2))
	assert.Equal(t, "36.00", o.Total.StringFixed(2))
	assert.Equal(t, "SAVE20", o.CouponCode)
	require.NotNil(t, o.PointsEarned)
	assert.Equal(t, int64(5), *o.PointsEarned)
	assert.NotEmpty(t, o.PickupToken)

	c, err := f.store.GetCoupon(ctx, "alice", "SAVE20")
	require.NoError(t, err)
	assert.True(t, c.Used)

	_, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("10", 1), CouponCode: "SAVE20"})
	assert.ErrorIs(t, err, usecase.ErrCouponAlreadyUsed)
	assert.Equal(t, []string{usecase.EventOrderPlaced}, f.events.types())
}

func TestPlaceOrderCouponPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.manualCoupon(t, "alice", "OFF", domain.DiscountFixed, "5")

	_, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "bob", Items: items("10", 1), CouponCode: "OFF"})
	assert.ErrorIs(t, err, usecase.ErrCouponInvalid, "coupons are per customer")

	_, err = f.coupons.Deactivate(ctx, "off")
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("10", 1), CouponCode: "OFF"})
	assert.ErrorIs(t, err, usecase.ErrCouponInactive)
	assert.Equal(t, usecase.KindPolicy, usecase.KindOf(err))
}

func TestPlaceOrderFixedDiscountNeverExceedsSubtotal(t *testing.T) {
	f := newFixture(t)
	f.manualCoupon(t, "alice", "BIG", domain.DiscountFixed, "50")

	out, err := f.svc.PlaceOrder(context.Background(), usecase.PlaceOrderInput{CustomerID: "alice", Items: items("12.50", 1), CouponCode: "BIG"})
	require.NoError(t, err)
	assert.True(t, out.Order.Total.IsZero())
	assert.Equal(t, "12.50", out.Order.Discount.StringFixed(2))
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice"})
	assert.ErrorIs(t, err, domain.ErrNoItems)
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))

	_, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("1", 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("1", 1), Class: "vip"})
	assert.ErrorIs(t, err, domain.ErrInvalidClass)

	_, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "mallory", Items: items("1", 1)})
	assert.ErrorIs(t, err, usecase.ErrCustomerNotFound)
	assert.Equal(t, "customer_not_found", usecase.Code(err))
}

func TestPlaceDemoOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("300", 1), Class: domain.ClassDemo})
	require.NoError(t, err)
	o := out.Order
	assert.Equal(t, domain.StatusCollected, o.Status)
	assert.Nil(t, o.PointsEarned)
	assert.Nil(t, out.MilestoneCoupon)

	claims, err := f.codec.Verify(o.PickupToken)
	require.NoError(t, err)
	assert.True(t, claims.Demo)

	p, err := f.loyalty.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, p.Points)
	assert.True(t, p.LifetimeSpend.IsZero())

	_, err = f.svc.VerifyAndCollect(ctx, o.PickupToken)
	assert.ErrorIs(t, err, usecase.ErrDemoTokenRejected)

	_, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("1", 1), Class: domain.ClassDemo, CouponCode: "X"})
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}

func TestPlaceOrderUnlocksMilestoneOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("150", 1)})
	require.NoError(t, err)
	assert.Nil(t, out.MilestoneCoupon)

	out, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("80", 1)})
	require.NoError(t, err)
	require.NotNil(t, out.MilestoneCoupon)
	assert.Equal(t, "MILESTONE-200", out.MilestoneCoupon.Code)
	assert.Equal(t, domain.OriginMilestone, out.MilestoneCoupon.Origin)
	assert.Equal(t, "10", out.MilestoneCoupon.Value.String())

	out, err = f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("50", 1)})
	require.NoError(t, err)
	assert.Nil(t, out.MilestoneCoupon)

	p, err := f.loyalty.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "280.00", p.LifetimeSpend.StringFixed(2))
	assert.Equal(t, int64(15), p.Points)
	assert.Equal(t, []string{"200.00"}, p.UnlockedKeys())

	list, err := f.coupons.ListCoupons(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Contains(t, f.notes.kinds(), usecase.NotifyCouponIssued)
}

func TestPlaceOrderSpendUsesDiscountedTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.manualCoupon(t, "bob", "TEN", domain.DiscountFixed, "10")

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "bob", Items: items("205", 1), CouponCode: "TEN"})
	require.NoError(t, err)
	assert.Nil(t, out.MilestoneCoupon, "195 paid does not reach 200")
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := usecase.PlaceOrderInput{CustomerID: "alice", Items: items("4.50", 2), IdempotencyKey: "k-1"}

	first, err := f.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)
	again, err := f.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)

	p, err := f.loyalty.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Points, "replay does not accrue twice")

	locked, err := f.idem.TryLock(ctx, "alice", "k-2")
	require.NoError(t, err)
	require.True(t, locked)
	in.IdempotencyKey = "k-2"
	_, err = f.svc.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, usecase.ErrDuplicate)
}

func TestPlaceOrderLogsUnmappedIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.idem.rememberErr = errors.New("redis: connection reset")
	var logs bytes.Buffer
	ctx := logging.WithCtx(context.Background(), slog.New(slog.NewJSONHandler(&logs, nil)))

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("4", 1), IdempotencyKey: "k-1"})
	require.NoError(t, err, "the order is committed even if the key mapping is lost")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "idempotency key not mapped to order")
	assert.Contains(t, logs.String(), out.Order.ID)
}

func TestPlaceOrderReleasesKeyOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := usecase.PlaceOrderInput{CustomerID: "alice", Items: items("4", 1), CouponCode: "LATER", IdempotencyKey: "k-1"}

	_, err := f.svc.PlaceOrder(ctx, in)
	require.ErrorIs(t, err, usecase.ErrCouponInvalid)

	f.manualCoupon(t, "alice", "LATER", domain.DiscountFixed, "1")
	out, err := f.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, "3.00", out.Order.Total.StringFixed(2))
}

func TestPlaceOrderSurvivesLoyaltyFailure(t *testing.T) {
	f := newFixture(t, withBrokenLoyalty())
	ctx := context.Background()

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("250", 1)})
	require.NoError(t, err)

	stored, err := f.svc.GetOrder(ctx, out.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, "250.00", stored.Total.StringFixed(2))
}
