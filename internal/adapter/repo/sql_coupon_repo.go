package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type SQLCouponRepo struct {
	db *sql.DB
	d  Dialect
}

func NewSQLCouponRepo(db *sql.DB, d Dialect) *SQLCouponRepo { return &SQLCouponRepo{db: db, d: d} }

const couponColumns = `id,customer_id,code,description,kind,value,used,active,origin,used_at,created_at,version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(s rowScanner) (*domain.Coupon, error) {
	var (
		c      domain.Coupon
		kind   string
		origin string
		usedAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.CustomerID, &c.Code, &c.Description, &kind, &c.Value, &c.Used, &c.Active,
		&origin, &usedAt, &c.CreatedAt, &c.Version); err != nil {
		return nil, err
	}
	c.Kind = domain.DiscountKind(kind)
	c.Origin = domain.CouponOrigin(origin)
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return &c, nil
}

func (r *SQLCouponRepo) GetCoupon(ctx context.Context, customerID, code string) (*domain.Coupon, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+couponColumns+` FROM coupons WHERE customer_id=? AND code=?`), customerID, code)
	c, err := scanCoupon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *SQLCouponRepo) SaveCoupon(ctx context.Context, c *domain.Coupon, expectedVersion int64) error {
	var usedAt sql.NullTime
	if c.UsedAt != nil {
		usedAt = sql.NullTime{Time: *c.UsedAt, Valid: true}
	}
	if expectedVersion == 0 {
		// UNIQUE (customer_id, code) turns a second insert into a version conflict
		err := execVersioned(ctx, r.db, r.d, `
INSERT INTO coupons (`+couponColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,1)`,
			c.ID, c.CustomerID, c.Code, c.Description, string(c.Kind), c.Value, c.Used, c.Active,
			string(c.Origin), usedAt, c.CreatedAt)
		if err != nil {
			return err
		}
		c.Version = 1
		return nil
	}

	// used is one-way: a used row is never rewritten
	err := execVersioned(ctx, r.db, r.d, `
UPDATE coupons
SET used = ?, used_at = ?, active = ?, version = version + 1
WHERE id = ? AND version = ? AND used = ?`,
		c.Used, usedAt, c.Active, c.ID, expectedVersion, false)
	if err != nil {
		return err
	}
	c.Version = expectedVersion + 1
	return nil
}

func (r *SQLCouponRepo) ListCouponsForCustomer(ctx context.Context, customerID string) ([]*domain.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT `+couponColumns+` FROM coupons WHERE customer_id=? ORDER BY created_at, code`), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLCouponRepo) SetActiveByCode(ctx context.Context, code string, active bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`UPDATE coupons SET active = ?, version = version + 1 WHERE code = ?`), active, code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ usecase.CouponRepo = (*SQLCouponRepo)(nil)
