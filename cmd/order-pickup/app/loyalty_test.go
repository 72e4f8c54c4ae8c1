package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aq2208/gorder-pickup/configs"
	domain "github.com/aq2208/gorder-pickup/internal/entity"
)

func TestLoyaltyRewards(t *testing.T) {
	var cfg configs.Config
	cfg.Loyalty.Rewards = []configs.RewardConfig{
		{ID: "free-drink", PointsCost: 10, CodePrefix: "DRINK", Kind: "fixed", Value: "4.50"},
	}
	rs, err := loyaltyRewards(cfg)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, domain.DiscountFixed, rs[0].Kind)
	assert.Equal(t, "4.5", rs[0].Value.String())

	cfg.Loyalty.Rewards[0].Kind = "bogus"
	_, err = loyaltyRewards(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidDiscountKind)

	cfg.Loyalty.Rewards[0].Kind = "fixed"
	cfg.Loyalty.Rewards[0].PointsCost = 0
	_, err = loyaltyRewards(cfg)
	assert.Error(t, err)
}

func TestLoyaltyMilestones(t *testing.T) {
	var cfg configs.Config
	cfg.Loyalty.Milestones = []configs.MilestoneConfig{
		{SpendLevel: "200", RewardValue: "10"},
		{SpendLevel: "500", RewardValue: "25"},
	}
	ms, err := loyaltyMilestones(cfg)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "500", ms[1].SpendLevel.String())

	cfg.Loyalty.Milestones[1].SpendLevel = "100"
	_, err = loyaltyMilestones(cfg)
	assert.Error(t, err)
}
