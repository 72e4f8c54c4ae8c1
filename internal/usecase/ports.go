package usecase

import (
	"context"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/security"
)

// Persistence gateway. Save* with expectedVersion 0 inserts; otherwise the write only
// lands if the stored version still equals expectedVersion (ErrVersionConflict if not).
// On success the entity's Version is bumped in place.

type OrderRepo interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	SaveOrder(ctx context.Context, o *domain.Order, expectedVersion int64) error
}

type CouponRepo interface {
	GetCoupon(ctx context.Context, customerID, code string) (*domain.Coupon, error)
	SaveCoupon(ctx context.Context, c *domain.Coupon, expectedVersion int64) error
	ListCouponsForCustomer(ctx context.Context, customerID string) ([]*domain.Coupon, error)
	SetActiveByCode(ctx context.Context, code string, active bool) (int64, error)
}

type LoyaltyRepo interface {
	GetLoyaltyProfile(ctx context.Context, customerID string) (*domain.LoyaltyProfile, error)
	SaveLoyaltyProfile(ctx context.Context, p *domain.LoyaltyProfile, expectedVersion int64) error
}

// CustomerDirectory is the read-only view of the externally managed customer base.
type CustomerDirectory interface {
	Exists(ctx context.Context, customerID string) (bool, error)
	ListCustomerIDs(ctx context.Context) ([]string, error)
}

type PickupTokens interface {
	Issue(orderID string, demo bool) (string, error)
	Verify(token string) (security.PickupClaims, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev OrderEvent) error
}

// Notifier records that a customer-facing message was requested; delivery is external.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Metrics interface {
	OrderPlaced(class string)
	OrderTransitioned(to string)
	ScanRejected(reason string)
	CouponRedeemed(kind string)
	CouponIssued(origin string)
	MilestoneUnlocked()
	LoyaltyUpdateFailed()
}

type noopMetrics struct{}

func (noopMetrics) OrderPlaced(string)       {}
func (noopMetrics) OrderTransitioned(string) {}
func (noopMetrics) ScanRejected(string)      {}
func (noopMetrics) CouponRedeemed(string)    {}
func (noopMetrics) CouponIssued(string)      {}
func (noopMetrics) MilestoneUnlocked()       {}
func (noopMetrics) LoyaltyUpdateFailed()     {}
