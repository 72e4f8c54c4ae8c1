package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

func TestRecordSpendAccruesPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.loyalty.RecordSpend(ctx, "alice", dec("199.99"))
	require.NoError(t, err)
	assert.Nil(t, res.Milestone)
	assert.Equal(t, int64(5), res.Profile.Points)

	res, err = f.loyalty.RecordSpend(ctx, "alice", dec("400"))
	require.NoError(t, err)
	require.NotNil(t, res.Milestone)
	assert.Equal(t, "200", res.Milestone.SpendLevel.String(), "only the first crossed level unlocks")

	_, err = f.loyalty.RecordSpend(ctx, "alice", dec("-1"))
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}

func TestConcurrentRecordSpendLosesNothing(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.loyalty.RecordSpend(context.Background(), "bob", dec("10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := f.loyalty.Profile(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(30), p.Points)
	assert.Equal(t, "60", p.LifetimeSpend.String())
}

func TestRedeemPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.loyalty.RecordSpend(ctx, "carol", dec("1"))
		require.NoError(t, err)
	}

	_, err := f.loyalty.RedeemPoints(ctx, "carol", 16)
	assert.ErrorIs(t, err, usecase.ErrInsufficientPoints)

	p, err := f.loyalty.RedeemPoints(ctx, "carol", 15)
	require.NoError(t, err)
	assert.Zero(t, p.Points)

	_, err = f.loyalty.RedeemPoints(ctx, "carol", 0)
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}

func TestRedeemRewardMintsCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.loyalty.RecordSpend(ctx, "alice", dec("5"))
	require.NoError(t, err)

	_, _, err = f.loyalty.RedeemReward(ctx, "alice", "free-drink")
	assert.ErrorIs(t, err, usecase.ErrInsufficientPoints)

	_, err = f.loyalty.RecordSpend(ctx, "alice", dec("5"))
	require.NoError(t, err)
	c, p, err := f.loyalty.RedeemReward(ctx, "alice", "free-drink")
	require.NoError(t, err)
	assert.Zero(t, p.Points)
	assert.True(t, strings.HasPrefix(c.Code, "DRINK-"))
	assert.Equal(t, domain.OriginReward, c.Origin)

	out, err := f.svc.PlaceOrder(ctx, usecase.PlaceOrderInput{CustomerID: "alice", Items: items("4", 1), CouponCode: c.Code})
	require.NoError(t, err)
	assert.True(t, out.Order.Total.IsZero())

	_, _, err = f.loyalty.RedeemReward(ctx, "alice", "yacht")
	assert.ErrorIs(t, err, usecase.ErrRewardNotFound)
}
