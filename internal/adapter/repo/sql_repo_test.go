package repo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

func TestRebind(t *testing.T) {
	q := `UPDATE orders SET status = ? WHERE id = ? AND version = ?`
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, `UPDATE orders SET status = $1 WHERE id = $2 AND version = $3`, Postgres.Rebind(q))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, MySQL.IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, MySQL.IsUniqueViolation(&mysql.MySQLError{Number: 1213}))
	assert.True(t, Postgres.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, Postgres.IsUniqueViolation(assert.AnError))
}

func TestSQLOrderRepoGetOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cols := []string{"id", "customer_id", "items_json", "subtotal", "total", "status", "pickup_token", "class",
		"coupon_code", "discount", "refund", "points_earned", "created_at", "updated_at", "version"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id=?`)).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"o1", "c1", []byte(`[{"itemId":"latte","name":"Latte","unitPrice":"4.5","quantity":2}]`),
			"9.00", "7.00", "PENDING", "tok", "real", "SAVE2", "2.00", nil, int64(5), now, now, int64(3)))

	o, err := NewSQLOrderRepo(db, MySQL).GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.ClassReal, o.Class)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	require.NotNil(t, o.Discount)
	assert.Equal(t, "2.00", o.Discount.StringFixed(2))
	assert.Nil(t, o.Refund)
	require.NotNil(t, o.PointsEarned)
	assert.Equal(t, int64(5), *o.PointsEarned)
	assert.Equal(t, int64(3), o.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLOrderRepoGetOrderNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM orders`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = NewSQLOrderRepo(db, MySQL).GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestSQLOrderRepoConditionalUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLOrderRepo(db, Postgres)
	o := &domain.Order{ID: "o1", Status: domain.StatusCollected, UpdatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $4 AND version = $5`)).
		WithArgs("COLLECTED", sqlmock.AnyArg(), sqlmock.AnyArg(), "o1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveOrder(context.Background(), o, 2))
	assert.Equal(t, int64(3), o.Version)

	mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SaveOrder(context.Background(), o, 2), usecase.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCouponRepoDuplicateInsertIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO coupons`).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	c := &domain.Coupon{ID: "x", CustomerID: "c1", Code: "SAVE5", Kind: domain.DiscountFixed,
		Value: decimal.NewFromInt(5), Active: true, Origin: domain.OriginManual, CreatedAt: time.Now()}
	err = NewSQLCouponRepo(db, MySQL).SaveCoupon(context.Background(), c, 0)
	assert.ErrorIs(t, err, usecase.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCouponRepoRedeemGuardsUsedFlag(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	c := &domain.Coupon{ID: "x", CustomerID: "c1", Code: "SAVE5", Used: true, UsedAt: &now, Active: true}
	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = ? AND version = ? AND used = ?`)).
		WithArgs(true, sqlmock.AnyArg(), true, "x", int64(1), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewSQLCouponRepo(db, MySQL).SaveCoupon(context.Background(), c, 1))
	assert.Equal(t, int64(2), c.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLoyaltyRepoRoundTripsUnlockedSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM loyalty_profiles`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "lifetime_spend", "points", "unlocked_json", "updated_at", "version"}).
			AddRow("c1", "230.00", int64(15), []byte(`["200.00"]`), time.Now(), int64(4)))

	repo := NewSQLLoyaltyRepo(db, MySQL)
	p, err := repo.GetLoyaltyProfile(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"200.00"}, p.UnlockedKeys())
	assert.Equal(t, "230", p.LifetimeSpend.String())

	mock.ExpectExec(`UPDATE loyalty_profiles`).
		WithArgs(sqlmock.AnyArg(), int64(15), `["200.00"]`, sqlmock.AnyArg(), "c1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveLoyaltyProfile(context.Background(), p, 4))
	assert.Equal(t, int64(5), p.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCustomerDirectory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dir := NewSQLCustomerDirectory(db, Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM customers WHERE id=$1`)).
		WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM customers`).
		WithArgs("ghost").WillReturnRows(sqlmock.NewRows([]string{"one"}))

	ok, err := dir.Exists(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = dir.Exists(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
