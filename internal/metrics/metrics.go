// Package metrics содержит счётчики Prometheus сервиса.
//
// Все методы безопасны для nil-получателя, чтобы сервисы в тестах
// можно было собирать без метрик.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payflow"

// Metrics набор коллекторов сервиса.
type Metrics struct {
	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	charges         *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	driftPublished  *prometheus.CounterVec
	driftReceived   *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Requests to the payment gateway by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway request latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_total",
			Help:      "Charge attempts by recorded status.",
		}, []string{"status"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_compensations_total",
			Help:      "Compensating actions by saga and result.",
		}, []string{"saga", "result"}),
		driftPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_alerts_published_total",
			Help:      "Drift alerts raised by kind.",
		}, []string{"kind"}),
		driftReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_alerts_received_total",
			Help:      "Drift alerts consumed by the monitor by kind.",
		}, []string{"kind"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		m.gatewayRequests,
		m.gatewayDuration,
		m.charges,
		m.compensations,
		m.driftPublished,
		m.driftReceived,
		m.webhooks,
	)
	return m
}

// ObserveGatewayRequest учитывает запрос к шлюзу.
func (m *Metrics) ObserveGatewayRequest(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.gatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ChargeRecorded учитывает сохранённую попытку платежа.
func (m *Metrics) ChargeRecorded(status string) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(status).Inc()
}

// Compensation учитывает компенсирующее действие. ok=false означает, что компенсация упала.
func (m *Metrics) Compensation(saga string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(saga, result).Inc()
}

// DriftPublished учитывает отправленный сигнал о расхождении.
func (m *Metrics) DriftPublished(kind string) {
	if m == nil {
		return
	}
	m.driftPublished.WithLabelValues(kind).Inc()
}

// DriftReceived учитывает сигнал, прочитанный монитором.
func (m *Metrics) DriftReceived(kind string) {
	if m == nil {
		return
	}
	m.driftReceived.WithLabelValues(kind).Inc()
}

// Webhook учитывает входящее событие шлюза.
func (m *Metrics) Webhook(eventType, result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(eventType, result).Inc()
}
