package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/logging"
)

// DefaultPointsPerOrder is the flat point award for every completed placement.
const DefaultPointsPerOrder int64 = 5

// Reward is a catalog entry customers can buy with points; it mints a coupon.
type Reward struct {
	ID          string
	PointsCost  int64
	CodePrefix  string
	Description string
	Kind        domain.DiscountKind
	Value       decimal.Decimal
}

type LoyaltyLedgerDeps struct {
	Profiles       LoyaltyRepo
	Coupons        *CouponLedger
	Milestones     []domain.Milestone
	PointsPerOrder int64
	Rewards        []Reward
	Metrics        Metrics
	Retry          RetryPolicy
	Clock          func() time.Time
}

type LoyaltyLedger struct {
	profiles       LoyaltyRepo
	coupons        *CouponLedger
	milestones     []domain.Milestone
	pointsPerOrder int64
	rewards        map[string]Reward
	metrics        Metrics
	retry          RetryPolicy
	clock          func() time.Time
}

func NewLoyaltyLedger(deps LoyaltyLedgerDeps) *LoyaltyLedger {
	l := &LoyaltyLedger{
		profiles:       deps.Profiles,
		coupons:        deps.Coupons,
		milestones:     domain.SortMilestones(deps.Milestones),
		pointsPerOrder: deps.PointsPerOrder,
		rewards:        make(map[string]Reward, len(deps.Rewards)),
		metrics:        deps.Metrics,
		retry:          deps.Retry,
		clock:          deps.Clock,
	}
	for _, r := range deps.Rewards {
		l.rewards[r.ID] = r
	}
	if l.pointsPerOrder <= 0 {
		l.pointsPerOrder = DefaultPointsPerOrder
	}
	if l.metrics == nil {
		l.metrics = noopMetrics{}
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.retry.Attempts == 0 {
		l.retry = DefaultRetryPolicy()
	}
	return l
}

func (l *LoyaltyLedger) PointsPerOrder() int64 { return l.pointsPerOrder }

type SpendResult struct {
	Profile   *domain.LoyaltyProfile
	Milestone *domain.Milestone
	Coupon    *domain.Coupon
}

func MilestoneCode(m domain.Milestone) string {
	return "MILESTONE-" + m.SpendLevel.String()
}

// RecordSpend accrues spend and points and issues at most one milestone coupon.
func (l *LoyaltyLedger) RecordSpend(ctx context.Context, customerID string, amount decimal.Decimal) (SpendResult, error) {
	if amount.IsNegative() {
		return SpendResult{}, validationErr(errors.New("spend amount must not be negative"))
	}
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		cur, err := l.load(ctx, customerID)
		if err != nil {
			return SpendResult{}, err
		}
		next := cur.Clone()
		hit := next.Accrue(amount, l.pointsPerOrder, l.milestones)
		next.UpdatedAt = l.clock().UTC()

		// the coupon goes first: Issue is idempotent per (customer, code), so a lost
		// race or a failed save below can never mint it twice
		var coupon *domain.Coupon
		if hit != nil {
			c, _, err := l.coupons.Issue(ctx, IssueCouponInput{
				CustomerID:  customerID,
				Code:        MilestoneCode(*hit),
				Description: fmt.Sprintf("Reward for reaching %s lifetime spend", hit.SpendLevel.String()),
				Kind:        domain.DiscountFixed,
				Value:       hit.RewardValue,
				Origin:      domain.OriginMilestone,
			})
			if err != nil {
				return SpendResult{}, fmt.Errorf("issue milestone coupon: %w", err)
			}
			coupon = c
		}

		err = l.retry.Do(ctx, func() error { return l.profiles.SaveLoyaltyProfile(ctx, next, cur.Version) })
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return SpendResult{}, err
		}
		if hit != nil {
			l.metrics.MilestoneUnlocked()
			logging.FromCtx(ctx).Info("milestone unlocked", "customer_id", customerID, "spend_level", hit.SpendLevel.String())
		}
		return SpendResult{Profile: next, Milestone: hit, Coupon: coupon}, nil
	}
	return SpendResult{}, ErrContention
}

// RedeemPoints deducts cost from the balance; the balance never goes negative.
func (l *LoyaltyLedger) RedeemPoints(ctx context.Context, customerID string, cost int64) (*domain.LoyaltyProfile, error) {
	if cost <= 0 {
		return nil, validationErr(errors.New("points cost must be positive"))
	}
	return l.adjustPoints(ctx, customerID, -cost)
}

func (l *LoyaltyLedger) adjustPoints(ctx context.Context, customerID string, delta int64) (*domain.LoyaltyProfile, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		cur, err := l.load(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if cur.Points+delta < 0 {
			return nil, fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientPoints, cur.Points, -delta)
		}
		next := cur.Clone()
		next.Points += delta
		next.UpdatedAt = l.clock().UTC()

		err = l.retry.Do(ctx, func() error { return l.profiles.SaveLoyaltyProfile(ctx, next, cur.Version) })
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, ErrContention
}

// RedeemReward spends points on a catalog reward and mints a single-use coupon for it.
// If minting fails the points are credited back.
func (l *LoyaltyLedger) RedeemReward(ctx context.Context, customerID, rewardID string) (*domain.Coupon, *domain.LoyaltyProfile, error) {
	r, ok := l.rewards[rewardID]
	if !ok {
		return nil, nil, ErrRewardNotFound
	}
	profile, err := l.RedeemPoints(ctx, customerID, r.PointsCost)
	if err != nil {
		return nil, nil, err
	}

	code := r.CodePrefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	c, _, err := l.coupons.Issue(ctx, IssueCouponInput{
		CustomerID:  customerID,
		Code:        code,
		Description: r.Description,
		Kind:        r.Kind,
		Value:       r.Value,
		Origin:      domain.OriginReward,
	})
	if err != nil {
		if _, rerr := l.adjustPoints(ctx, customerID, r.PointsCost); rerr != nil {
			logging.FromCtx(ctx).Error("points refund after failed reward mint", "customer_id", customerID, "reward_id", rewardID, "points", r.PointsCost, "err", rerr)
		}
		return nil, nil, fmt.Errorf("mint reward coupon: %w", err)
	}
	return c, profile, nil
}

// Profile returns the customer's profile, or an empty one if none exists yet.
func (l *LoyaltyLedger) Profile(ctx context.Context, customerID string) (*domain.LoyaltyProfile, error) {
	return l.load(ctx, customerID)
}

func (l *LoyaltyLedger) Rewards() []Reward {
	out := make([]Reward, 0, len(l.rewards))
	for _, r := range l.rewards {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *LoyaltyLedger) load(ctx context.Context, customerID string) (*domain.LoyaltyProfile, error) {
	if customerID == "" {
		return nil, validationErr(errors.New("customer id required"))
	}
	var p *domain.LoyaltyProfile
	err := l.retry.Do(ctx, func() error {
		var err error
		p, err = l.profiles.GetLoyaltyProfile(ctx, customerID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return domain.NewLoyaltyProfile(customerID), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
