package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Milestone rewards a fixed-value coupon the first time lifetime spend reaches SpendLevel.
type Milestone struct {
	SpendLevel  decimal.Decimal
	RewardValue decimal.Decimal
}

// Key is the stable identifier stored in a profile's unlocked set.
func (m Milestone) Key() string {
	return m.SpendLevel.StringFixed(2)
}

type LoyaltyProfile struct {
	CustomerID    string
	LifetimeSpend decimal.Decimal
	Points        int64
	Unlocked      map[string]struct{}
	UpdatedAt     time.Time
	Version       int64
}

func NewLoyaltyProfile(customerID string) *LoyaltyProfile {
	return &LoyaltyProfile{
		CustomerID:    customerID,
		LifetimeSpend: decimal.Zero,
		Unlocked:      map[string]struct{}{},
	}
}

func (p *LoyaltyProfile) IsUnlocked(m Milestone) bool {
	_, ok := p.Unlocked[m.Key()]
	return ok
}

// UnlockedKeys returns the unlocked set in a deterministic order.
func (p *LoyaltyProfile) UnlockedKeys() []string {
	keys := make([]string, 0, len(p.Unlocked))
	for k := range p.Unlocked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Accrue adds spend and points and returns the first milestone newly crossed by this
// accrual, already marked unlocked. Only one milestone is unlocked per call.
func (p *LoyaltyProfile) Accrue(amount decimal.Decimal, points int64, milestones []Milestone) *Milestone {
	prev := p.LifetimeSpend
	if amount.IsPositive() {
		p.LifetimeSpend = prev.Add(amount)
	}
	p.Points += points

	for _, m := range milestones {
		if prev.LessThan(m.SpendLevel) && m.SpendLevel.LessThanOrEqual(p.LifetimeSpend) && !p.IsUnlocked(m) {
			p.Unlocked[m.Key()] = struct{}{}
			hit := m
			return &hit
		}
	}
	return nil
}

func (p *LoyaltyProfile) Clone() *LoyaltyProfile {
	cp := *p
	cp.Unlocked = make(map[string]struct{}, len(p.Unlocked))
	for k := range p.Unlocked {
		cp.Unlocked[k] = struct{}{}
	}
	return &cp
}

// SortMilestones orders milestones by ascending spend level.
func SortMilestones(ms []Milestone) []Milestone {
	out := append([]Milestone(nil), ms...)
	sort.Slice(out, func(i, j int) bool { return out[i].SpendLevel.LessThan(out[j].SpendLevel) })
	return out
}
