package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

func TestConcurrentRedeemSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	f.manualCoupon(t, "carol", "ONCE", domain.DiscountFixed, "3")

	const callers = 12
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _, err := f.coupons.Redeem(context.Background(), "carol", "ONCE", dec("10"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				assert.Equal(t, "3", d.String())
				return
			}
			assert.ErrorIs(t, err, usecase.ErrCouponAlreadyUsed)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRedeemErrorPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.manualCoupon(t, "alice", "P1", domain.DiscountPercentage, "10")

	_, _, err := f.coupons.Redeem(ctx, "alice", "NOPE", dec("10"))
	assert.ErrorIs(t, err, usecase.ErrCouponInvalid)

	_, err = f.coupons.Deactivate(ctx, "P1")
	require.NoError(t, err)
	_, _, err = f.coupons.Redeem(ctx, "alice", "p1", dec("10"))
	assert.ErrorIs(t, err, usecase.ErrCouponInactive)

	_, err = f.coupons.Activate(ctx, "P1")
	require.NoError(t, err)
	d, c, err := f.coupons.Redeem(ctx, "alice", "P1", dec("19.99"))
	require.NoError(t, err)
	assert.Equal(t, "2.00", d.StringFixed(2))
	require.NotNil(t, c.UsedAt)

	// used wins over inactive
	_, err = f.coupons.Deactivate(ctx, "P1")
	require.NoError(t, err)
	_, _, err = f.coupons.Redeem(ctx, "alice", "P1", dec("10"))
	assert.ErrorIs(t, err, usecase.ErrCouponAlreadyUsed)
}

func TestIssueIsIdempotentPerCustomerAndCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := usecase.IssueCouponInput{CustomerID: "bob", Code: "welcome", Kind: domain.DiscountFixed, Value: dec("2")}

	first, created, err := f.coupons.Issue(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "WELCOME", first.Code)

	in.Value = dec("99")
	again, created, err := f.coupons.Issue(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "2", again.Value.String())

	_, _, err = f.coupons.Issue(ctx, usecase.IssueCouponInput{CustomerID: "bob", Code: "BAD", Kind: domain.DiscountPercentage, Value: dec("0")})
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}

func TestBroadcastIssuesToEveryCustomerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.manualCoupon(t, "bob", "SPRING", domain.DiscountFixed, "1")

	res, err := f.coupons.Broadcast(ctx, usecase.IssueCouponInput{Code: "spring", Kind: domain.DiscountFixed, Value: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, usecase.BroadcastResult{Customers: 3, Issued: 2}, res)

	for _, id := range []string{"alice", "bob", "carol"} {
		list, err := f.coupons.ListCoupons(ctx, id)
		require.NoError(t, err)
		require.Len(t, list, 1, id)
		assert.Equal(t, "SPRING", list[0].Code)
	}

	res, err = f.coupons.Broadcast(ctx, usecase.IssueCouponInput{Code: "SPRING", Kind: domain.DiscountFixed, Value: dec("1")})
	require.NoError(t, err)
	assert.Zero(t, res.Issued)
}

func TestSetActiveRequiresCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.coupons.SetActive(context.Background(), "  ", true)
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}
