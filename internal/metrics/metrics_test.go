package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveGatewayRequest("CreateCharge", "ok", 120*time.Millisecond)
	m.ObserveGatewayRequest("CreateCharge", "ok", 80*time.Millisecond)
	m.ObserveGatewayRequest("CreateCharge", "timeout", 30*time.Second)
	m.ChargeRecorded("completed")
	m.ChargeRecorded("failed")
	m.ChargeRecorded("failed")
	m.Compensation("customer", true)
	m.Compensation("customer", false)
	m.DriftPublished("customer.orphaned")
	m.DriftReceived("customer.orphaned")
	m.Webhook("charge.succeeded", "applied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayRequests.WithLabelValues("CreateCharge", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayRequests.WithLabelValues("CreateCharge", "timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.charges.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compensations.WithLabelValues("customer", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.driftPublished.WithLabelValues("customer.orphaned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.driftReceived.WithLabelValues("customer.orphaned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("charge.succeeded", "applied")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.gatewayDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGatewayRequest("CreateCharge", "ok", time.Second)
		m.ChargeRecorded("completed")
		m.Compensation("customer", true)
		m.DriftPublished("card.orphaned")
		m.DriftReceived("card.orphaned")
		m.Webhook("verification", "ignored")
	})
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
