package repo

import (
	"context"
	"sort"
	"sync"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

// MemoryStore is a process-local persistence gateway with the same versioning
// contract as the SQL repos. Used for the dev profile and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	coupons   map[couponKey]*domain.Coupon
	profiles  map[string]*domain.LoyaltyProfile
	customers map[string]struct{}
}

type couponKey struct{ customerID, code string }

func NewMemoryStore(customerIDs ...string) *MemoryStore {
	s := &MemoryStore{
		orders:    map[string]*domain.Order{},
		coupons:   map[couponKey]*domain.Coupon{},
		profiles:  map[string]*domain.LoyaltyProfile{},
		customers: map[string]struct{}{},
	}
	for _, id := range customerIDs {
		s.customers[id] = struct{}{}
	}
	return s
}

func (s *MemoryStore) AddCustomer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[id] = struct{}{}
}

// orders

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) SaveOrder(_ context.Context, o *domain.Order, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if expectedVersion == 0 {
		if ok {
			return errVersionConflict
		}
	} else if !ok || cur.Version != expectedVersion {
		return errVersionConflict
	}
	o.Version = expectedVersion + 1
	s.orders[o.ID] = o.Clone()
	return nil
}

// coupons

func (s *MemoryStore) GetCoupon(_ context.Context, customerID, code string) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[couponKey{customerID, code}]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) SaveCoupon(_ context.Context, c *domain.Coupon, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := couponKey{c.CustomerID, c.Code}
	cur, ok := s.coupons[k]
	if expectedVersion == 0 {
		if ok {
			return errVersionConflict
		}
	} else if !ok || cur.Version != expectedVersion || cur.Used {
		return errVersionConflict
	}
	c.Version = expectedVersion + 1
	s.coupons[k] = c.Clone()
	return nil
}

func (s *MemoryStore) ListCouponsForCustomer(_ context.Context, customerID string) ([]*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Coupon
	for k, c := range s.coupons {
		if k.customerID == customerID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SetActiveByCode(_ context.Context, code string, active bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, c := range s.coupons {
		if k.code != code {
			continue
		}
		c.Active = active
		c.Version++
		n++
	}
	return n, nil
}

// loyalty

func (s *MemoryStore) GetLoyaltyProfile(_ context.Context, customerID string) (*domain.LoyaltyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) SaveLoyaltyProfile(_ context.Context, p *domain.LoyaltyProfile, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[p.CustomerID]
	if expectedVersion == 0 {
		if ok {
			return errVersionConflict
		}
	} else if !ok || cur.Version != expectedVersion {
		return errVersionConflict
	}
	p.Version = expectedVersion + 1
	s.profiles[p.CustomerID] = p.Clone()
	return nil
}

// customers

func (s *MemoryStore) Exists(_ context.Context, customerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.customers[customerID]
	return ok, nil
}

func (s *MemoryStore) ListCustomerIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ usecase.OrderRepo         = (*MemoryStore)(nil)
	_ usecase.CouponRepo        = (*MemoryStore)(nil)
	_ usecase.LoyaltyRepo       = (*MemoryStore)(nil)
	_ usecase.CustomerDirectory = (*MemoryStore)(nil)
)
