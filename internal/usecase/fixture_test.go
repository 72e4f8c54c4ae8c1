package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aq2208/gorder-pickup/internal/adapter/repo"
	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/security"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordedNotifier struct {
	mu   sync.Mutex
	sent []usecase.Notification
}

func (r *recordedNotifier) Notify(_ context.Context, n usecase.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordedNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		out = append(out, n.Kind)
	}
	return out
}

type recordedEvents struct {
	mu     sync.Mutex
	events []usecase.OrderEvent
}

func (r *recordedEvents) PublishOrderEvent(_ context.Context, ev usecase.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type memIdempotency struct {
	mu          sync.Mutex
	locked      map[string]bool
	done        map[string]string
	rememberErr error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{locked: map[string]bool{}, done: map[string]string{}}
}

func (m *memIdempotency) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + "/" + key
	if m.locked[k] {
		return false, nil
	}
	m.locked[k] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, scope+"/"+key)
	return nil
}

func (m *memIdempotency) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rememberErr != nil {
		return m.rememberErr
	}
	m.done[scope+"/"+key] = value
	return nil
}

func (m *memIdempotency) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.done[scope+"/"+key]
	return v, ok, nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *memCache) SetStatus(_ context.Context, id, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = status
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[id]
	return v, ok, nil
}

// brokenLoyalty fails every profile write.
type brokenLoyalty struct{ usecase.LoyaltyRepo }

func (brokenLoyalty) SaveLoyaltyProfile(context.Context, *domain.LoyaltyProfile, int64) error {
	return fmt.Errorf("connection reset")
}

type fixture struct {
	store   *repo.MemoryStore
	clock   *clock
	codec   *security.PickupCodec
	notes   *recordedNotifier
	events  *recordedEvents
	idem    *memIdempotency
	cache   *memCache
	coupons *usecase.CouponLedger
	loyalty *usecase.LoyaltyLedger
	svc     *usecase.OrderService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	brokenLoyalty bool
}

func withBrokenLoyalty() fixtureOption {
	return func(c *fixtureConfig) { c.brokenLoyalty = true }
}

var fastRetry = usecase.RetryPolicy{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  repo.NewMemoryStore("alice", "bob", "carol"),
		clock:  &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		notes:  &recordedNotifier{},
		events: &recordedEvents{},
		idem:   newMemIdempotency(),
		cache:  &memCache{m: map[string]string{}},
	}
	var cfg fixtureConfig
	for _, o := range opts {
		o(&cfg)
	}
	var profiles usecase.LoyaltyRepo = f.store
	if cfg.brokenLoyalty {
		profiles = brokenLoyalty{f.store}
	}

	codec, err := security.NewPickupCodec(testSecret, time.Hour, security.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.codec = codec

	f.coupons = usecase.NewCouponLedger(usecase.CouponLedgerDeps{
		Coupons:   f.store,
		Customers: f.store,
		Notifier:  f.notes,
		Retry:     fastRetry,
		Clock:     f.clock.Now,
	})
	f.loyalty = usecase.NewLoyaltyLedger(usecase.LoyaltyLedgerDeps{
		Profiles: profiles,
		Coupons:  f.coupons,
		Milestones: []domain.Milestone{
			{SpendLevel: dec("500"), RewardValue: dec("25")},
			{SpendLevel: dec("200"), RewardValue: dec("10")},
		},
		PointsPerOrder: 5,
		Rewards: []usecase.Reward{
			{ID: "free-drink", PointsCost: 10, CodePrefix: "DRINK", Description: "Free drink", Kind: domain.DiscountFixed, Value: dec("5")},
		},
		Retry: fastRetry,
		Clock: f.clock.Now,
	})
	f.svc, err = usecase.NewOrderService(usecase.OrderServiceDeps{
		Orders:      f.store,
		Customers:   f.store,
		Tokens:      f.codec,
		Coupons:     f.coupons,
		Loyalty:     f.loyalty,
		Idempotency: f.idem,
		Cache:       f.cache,
		Events:      f.events,
		Notifier:    f.notes,
		Retry:       fastRetry,
		Clock:       f.clock.Now,
	})
	require.NoError(t, err)
	return f
}

func items(price string, qty int) []domain.LineItem {
	return []domain.LineItem{{ItemID: "latte", Name: "Latte", UnitPrice: dec(price), Quantity: qty}}
}

func (f *fixture) place(t *testing.T, customer, amount string) *domain.Order {
	t.Helper()
	out, err := f.svc.PlaceOrder(context.Background(), usecase.PlaceOrderInput{CustomerID: customer, Items: items(amount, 1)})
	require.NoError(t, err)
	return out.Order
}

func (f *fixture) manualCoupon(t *testing.T, customer, code string, kind domain.DiscountKind, value string) {
	t.Helper()
	_, created, err := f.coupons.Issue(context.Background(), usecase.IssueCouponInput{
		CustomerID: customer, Code: code, Kind: kind, Value: dec(value),
	})
	require.NoError(t, err)
	require.True(t, created)
}
