package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPrepared  Status = "PREPARED"
	StatusCollected Status = "COLLECTED"
	StatusCancelled Status = "CANCELLED"
)

type Class string

const (
	ClassReal Class = "real"
	ClassDemo Class = "demo"
)

// CancellationRefundRatio is the share of the total returned on a cancellation.
var CancellationRefundRatio = decimal.RequireFromString("0.5")

var (
	ErrNoItems         = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidPrice    = errors.New("item unit price must not be negative")
	ErrMissingItemID   = errors.New("item id required")
	ErrInvalidClass    = errors.New("unknown order class")
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusPrepared, StatusCollected, StatusCancelled},
	StatusPrepared: {StatusCollected},
}

// CanTransition reports whether from -> to is an edge of the order state machine.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCollected || s == StatusCancelled
}

type LineItem struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Note      string          `json:"note,omitempty"`
}

func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID           string
	CustomerID   string
	Items        []LineItem
	Subtotal     decimal.Decimal
	Total        decimal.Decimal
	Status       Status
	PickupToken  string
	Class        Class
	CouponCode   string
	Discount     *decimal.Decimal
	Refund       *decimal.Decimal
	PointsEarned *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
}

// ValidateItems rejects empty carts, blank ids, non-positive quantities and negative prices.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for _, it := range items {
		if it.ItemID == "" {
			return ErrMissingItemID
		}
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if it.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
	}
	return nil
}

func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Amount())
	}
	return sum
}

func (c Class) Valid() bool {
	return c == ClassReal || c == ClassDemo
}

// Transition moves the order along a legal edge; it leaves the order untouched otherwise.
func (o *Order) Transition(to Status, at time.Time) bool {
	if !CanTransition(o.Status, to) {
		return false
	}
	o.Status = to
	o.UpdatedAt = at
	return true
}

// Cancel applies the cancellation refund policy.
func (o *Order) Cancel(at time.Time) bool {
	if !o.Transition(StatusCancelled, at) {
		return false
	}
	refund := o.Total.Mul(CancellationRefundRatio).Round(2)
	o.Refund = &refund
	return true
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	if o.Discount != nil {
		d := *o.Discount
		cp.Discount = &d
	}
	if o.Refund != nil {
		r := *o.Refund
		cp.Refund = &r
	}
	if o.PointsEarned != nil {
		p := *o.PointsEarned
		cp.PointsEarned = &p
	}
	return &cp
}
