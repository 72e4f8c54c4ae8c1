package observ

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OrderPlaced("real")
	m.OrderPlaced("real")
	m.OrderPlaced("demo")
	m.ScanRejected("already_collected")
	m.MilestoneUnlocked()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced.WithLabelValues("real")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersPlaced.WithLabelValues("demo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansRejected.WithLabelValues("already_collected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.milestonesUnlocked))

	n, err := testutil.GatherAndCount(reg, "pickup_orders_placed_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetricsRegisterOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
