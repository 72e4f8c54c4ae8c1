package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

type CouponOrigin string

const (
	OriginManual    CouponOrigin = "manual"
	OriginMilestone CouponOrigin = "milestone"
	OriginReward    CouponOrigin = "reward"
)

var (
	ErrInvalidDiscountKind  = errors.New("discount kind must be fixed or percentage")
	ErrInvalidDiscountValue = errors.New("discount value must be positive")
	ErrMissingCouponCode    = errors.New("coupon code required")
	ErrInvalidOrigin        = errors.New("unknown coupon origin")
)

var hundred = decimal.NewFromInt(100)

// Coupon is one customer's right to a single discount under Code.
type Coupon struct {
	ID          string
	CustomerID  string
	Code        string
	Description string
	Kind        DiscountKind
	Value       decimal.Decimal
	Used        bool
	Active      bool
	Origin      CouponOrigin
	UsedAt      *time.Time
	CreatedAt   time.Time
	Version     int64
}

func (c *Coupon) Validate() error {
	if c.Code == "" {
		return ErrMissingCouponCode
	}
	if c.Kind != DiscountFixed && c.Kind != DiscountPercentage {
		return ErrInvalidDiscountKind
	}
	if !c.Value.IsPositive() {
		return ErrInvalidDiscountValue
	}
	switch c.Origin {
	case OriginManual, OriginMilestone, OriginReward:
	default:
		return ErrInvalidOrigin
	}
	return nil
}

// Discount computes the reduction this coupon grants on subtotal, clamped to [0, subtotal].
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Kind {
	case DiscountPercentage:
		d = subtotal.Mul(c.Value).Div(hundred).Round(2)
	default:
		d = c.Value
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}

func (c *Coupon) Clone() *Coupon {
	cp := *c
	if c.UsedAt != nil {
		t := *c.UsedAt
		cp.UsedAt = &t
	}
	return &cp
}
