package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aq2208/gorder-pickup/configs"
	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

func loyaltyMilestones(cfg configs.Config) ([]domain.Milestone, error) {
	specs, err := cfg.Milestones()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Milestone, 0, len(specs))
	for _, m := range specs {
		out = append(out, domain.Milestone{SpendLevel: m.SpendLevel, RewardValue: m.RewardValue})
	}
	return out, nil
}

func loyaltyRewards(cfg configs.Config) ([]usecase.Reward, error) {
	out := make([]usecase.Reward, 0, len(cfg.Loyalty.Rewards))
	for i, r := range cfg.Loyalty.Rewards {
		kind := domain.DiscountKind(r.Kind)
		if kind != domain.DiscountFixed && kind != domain.DiscountPercentage {
			return nil, fmt.Errorf("loyalty.rewards[%d].kind: %w", i, domain.ErrInvalidDiscountKind)
		}
		v, err := decimal.NewFromString(r.Value)
		if err != nil {
			return nil, fmt.Errorf("loyalty.rewards[%d].value: %w", i, err)
		}
		if r.ID == "" || r.CodePrefix == "" || r.PointsCost <= 0 {
			return nil, fmt.Errorf("loyalty.rewards[%d]: id, code_prefix and a positive points_cost are required", i)
		}
		out = append(out, usecase.Reward{
			ID:          r.ID,
			PointsCost:  r.PointsCost,
			CodePrefix:  r.CodePrefix,
			Description: r.Description,
			Kind:        kind,
			Value:       v,
		})
	}
	return out, nil
}
