package http

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type lineItemReq struct {
	ItemID    string          `json:"itemId" binding:"required"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity" binding:"required"`
	Note      string          `json:"note"`
}

type lineItemResp struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name,omitempty"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Amount    string `json:"amount"`
	Note      string `json:"note,omitempty"`
}

type orderResp struct {
	ID           string         `json:"id"`
	CustomerID   string         `json:"customerId"`
	Items        []lineItemResp `json:"items"`
	Subtotal     string         `json:"subtotal"`
	Discount     string         `json:"discount,omitempty"`
	Total        string         `json:"total"`
	CouponCode   string         `json:"couponCode,omitempty"`
	Status       string         `json:"status"`
	Class        string         `json:"class"`
	Refund       string         `json:"refund,omitempty"`
	PointsEarned *int64         `json:"pointsEarned,omitempty"`
	PickupToken  string         `json:"pickupToken,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// toOrderResp renders an order. The pickup token is only handed to its owner.
func toOrderResp(o *domain.Order, withToken bool) orderResp {
	r := orderResp{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		Subtotal:     o.Subtotal.StringFixed(2),
		Total:        o.Total.StringFixed(2),
		CouponCode:   o.CouponCode,
		Status:       string(o.Status),
		Class:        string(o.Class),
		PointsEarned: o.PointsEarned,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for _, it := range o.Items {
		r.Items = append(r.Items, lineItemResp{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
			Amount:    it.Amount().StringFixed(2),
			Note:      it.Note,
		})
	}
	if o.Discount != nil {
		r.Discount = o.Discount.StringFixed(2)
	}
	if o.Refund != nil {
		r.Refund = o.Refund.StringFixed(2)
	}
	if withToken {
		r.PickupToken = o.PickupToken
	}
	return r
}

type couponResp struct {
	ID          string     `json:"id"`
	CustomerID  string     `json:"customerId"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	Kind        string     `json:"kind"`
	Value       string     `json:"value"`
	Used        bool       `json:"used"`
	Active      bool       `json:"active"`
	Origin      string     `json:"origin"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toCouponResp(c *domain.Coupon) *couponResp {
	if c == nil {
		return nil
	}
	return &couponResp{
		ID:          c.ID,
		CustomerID:  c.CustomerID,
		Code:        c.Code,
		Description: c.Description,
		Kind:        string(c.Kind),
		Value:       c.Value.String(),
		Used:        c.Used,
		Active:      c.Active,
		Origin:      string(c.Origin),
		UsedAt:      c.UsedAt,
		CreatedAt:   c.CreatedAt,
	}
}

type profileResp struct {
	CustomerID         string   `json:"customerId"`
	LifetimeSpend      string   `json:"lifetimeSpend"`
	Points             int64    `json:"points"`
	UnlockedMilestones []string `json:"unlockedMilestones"`
}

func toProfileResp(p *domain.LoyaltyProfile) profileResp {
	return profileResp{
		CustomerID:         p.CustomerID,
		LifetimeSpend:      p.LifetimeSpend.StringFixed(2),
		Points:             p.Points,
		UnlockedMilestones: p.UnlockedKeys(),
	}
}

type rewardResp struct {
	ID          string `json:"id"`
	PointsCost  int64  `json:"pointsCost"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Value       string `json:"value"`
}

func toRewardResps(rs []usecase.Reward) []rewardResp {
	out := make([]rewardResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, rewardResp{ID: r.ID, PointsCost: r.PointsCost, Description: r.Description, Kind: string(r.Kind), Value: r.Value.String()})
	}
	return out
}
