package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry          *prometheus.Registry
	purchasesTotal    *prometheus.CounterVec
	fulfillmentsTotal *prometheus.CounterVec
	purchaseDuration  prometheus.Histogram
}

func newMetricsRegistry() *metricsRegistry {
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billrails_purchases_total",
		Help: "Purchase flow runs by terminal state",
	}, []string{"state"})

	fulfillments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billrails_fulfillments_total",
		Help: "Backend fulfillment dispatches by result",
	}, []string{"result"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billrails_purchase_duration_seconds",
		Help:    "End-to-end purchase flow duration including confirmation wait",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	r := prometheus.NewRegistry()
	r.MustRegister(purchases, fulfillments, duration)

	return &metricsRegistry{
		registry:          r,
		purchasesTotal:    purchases,
		fulfillmentsTotal: fulfillments,
		purchaseDuration:  duration,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incPurchase(state string) {
	m.purchasesTotal.WithLabelValues(state).Inc()
}

func (m *metricsRegistry) incFulfillment(result string) {
	m.fulfillmentsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) observeDuration(seconds float64) {
	m.purchaseDuration.Observe(seconds)
}
