package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

var (
	ErrNotFound        = usecase.ErrNotFound
	errVersionConflict = usecase.ErrVersionConflict
)

type SQLOrderRepo struct {
	db *sql.DB
	d  Dialect
}

func NewSQLOrderRepo(db *sql.DB, d Dialect) *SQLOrderRepo { return &SQLOrderRepo{db: db, d: d} }

const orderColumns = `id,customer_id,items_json,subtotal,total,status,pickup_token,class,coupon_code,discount,refund,points_earned,created_at,updated_at,version`

func (r *SQLOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+orderColumns+` FROM orders WHERE id=?`), id)

	var (
		o         domain.Order
		itemsJSON []byte
		status    string
		class     string
		discount  decimal.NullDecimal
		refund    decimal.NullDecimal
		points    sql.NullInt64
	)
	err := row.Scan(&o.ID, &o.CustomerID, &itemsJSON, &o.Subtotal, &o.Total, &status, &o.PickupToken,
		&class, &o.CouponCode, &discount, &refund, &points, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", id, err)
	}
	o.Status = domain.Status(status)
	o.Class = domain.Class(class)
	if discount.Valid {
		o.Discount = &discount.Decimal
	}
	if refund.Valid {
		o.Refund = &refund.Decimal
	}
	if points.Valid {
		o.PointsEarned = &points.Int64
	}
	return &o, nil
}

func (r *SQLOrderRepo) SaveOrder(ctx context.Context, o *domain.Order, expectedVersion int64) error {
	if expectedVersion == 0 {
		items, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("encode items: %w", err)
		}
		err = execVersioned(ctx, r.db, r.d, `
INSERT INTO orders (`+orderColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,1)`,
			o.ID, o.CustomerID, string(items), o.Subtotal, o.Total, string(o.Status), o.PickupToken,
			string(o.Class), o.CouponCode, nullDecimal(o.Discount), nullDecimal(o.Refund), nullInt(o.PointsEarned),
			o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return err
		}
		o.Version = 1
		return nil
	}

	// only lifecycle fields change after placement
	err := execVersioned(ctx, r.db, r.d, `
UPDATE orders
SET status = ?, refund = ?, updated_at = ?, version = version + 1
WHERE id = ? AND version = ?`,
		string(o.Status), nullDecimal(o.Refund), o.UpdatedAt, o.ID, expectedVersion)
	if err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

var _ usecase.OrderRepo = (*SQLOrderRepo)(nil)
