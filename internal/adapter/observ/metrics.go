package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aq2208/gorder-pickup/internal/usecase"
)

// Metrics implements usecase.Metrics with Prometheus counters.
type Metrics struct {
	ordersPlaced       *prometheus.CounterVec
	orderTransitions   *prometheus.CounterVec
	scansRejected      *prometheus.CounterVec
	couponsRedeemed    *prometheus.CounterVec
	couponsIssued      *prometheus.CounterVec
	milestonesUnlocked prometheus.Counter
	loyaltyFailures    prometheus.Counter
}

// NewMetrics registers the domain counters on reg (prometheus.DefaultRegisterer in main).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ordersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_orders_placed_total",
			Help: "Orders placed, by class",
		}, []string{"class"}),
		orderTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_order_transitions_total",
			Help: "Order status transitions, by target status",
		}, []string{"to"}),
		scansRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_scans_rejected_total",
			Help: "Rejected pickup scans, by error code",
		}, []string{"reason"}),
		couponsRedeemed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_coupons_redeemed_total",
			Help: "Coupons consumed by orders, by discount kind",
		}, []string{"kind"}),
		couponsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_coupons_issued_total",
			Help: "Coupons minted, by origin",
		}, []string{"origin"}),
		milestonesUnlocked: f.NewCounter(prometheus.CounterOpts{
			Name: "pickup_milestones_unlocked_total",
			Help: "Loyalty milestones unlocked",
		}),
		loyaltyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "pickup_loyalty_update_failures_total",
			Help: "Loyalty updates that failed after the order was stored",
		}),
	}
}

func (m *Metrics) OrderPlaced(class string)    { m.ordersPlaced.WithLabelValues(class).Inc() }
func (m *Metrics) OrderTransitioned(to string) { m.orderTransitions.WithLabelValues(to).Inc() }
func (m *Metrics) ScanRejected(reason string)  { m.scansRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) CouponRedeemed(kind string)  { m.couponsRedeemed.WithLabelValues(kind).Inc() }
func (m *Metrics) CouponIssued(origin string)  { m.couponsIssued.WithLabelValues(origin).Inc() }
func (m *Metrics) MilestoneUnlocked()          { m.milestonesUnlocked.Inc() }
func (m *Metrics) LoyaltyUpdateFailed()        { m.loyaltyFailures.Inc() }

var _ usecase.Metrics = (*Metrics)(nil)
