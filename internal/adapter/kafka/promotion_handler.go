package kafka

import (
	"context"
	"fmt"

	"github.com/aq2208/gorder-pickup/internal/usecase"
)

// CouponToggler is the slice of the coupon ledger promotions drive.
type CouponToggler interface {
	SetActive(ctx context.Context, code string, active bool) (int64, error)
}

// PromotionHandler applies promotion on/off switches published by the marketing tool.
type PromotionHandler struct {
	Coupons CouponToggler
}

func NewPromotionHandler(c CouponToggler) *PromotionHandler {
	return &PromotionHandler{Coupons: c}
}

func (h *PromotionHandler) Handle(ctx context.Context, msg usecase.PromotionToggleMsg) error {
	_, err := h.Coupons.SetActive(ctx, msg.Code, msg.Active)
	if err != nil && usecase.KindOf(err) == usecase.KindValidation {
		return fmt.Errorf("%w: %v", ErrSkip, err)
	}
	return err
}
