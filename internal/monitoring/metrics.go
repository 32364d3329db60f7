// Package monitoring registers Prometheus metrics and the trace provider.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payments processed, by gateway and final status.",
	}, []string{"gateway", "status"})

	paymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Individual gateway attempts including retries.",
	}, []string{"gateway"})

	routingSelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_selections_total",
		Help: "Gateway selections made by the fee-optimized router.",
	}, []string{"gateway"})

	paymentDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_duration_seconds",
		Help:    "End-to-end payment processing duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
)

func RecordPayment(gateway, status string)      { paymentsTotal.WithLabelValues(gateway, status).Inc() }
func RecordAttempt(gateway string)              { paymentAttemptsTotal.WithLabelValues(gateway).Inc() }
func RecordRoutingSelection(gateway string)     { routingSelectionsTotal.WithLabelValues(gateway).Inc() }
func ObservePaymentDuration(gateway string, seconds float64) {
	paymentDurationSeconds.WithLabelValues(gateway).Observe(seconds)
}

// Accessors for test assertions against the global registry.
func GetPaymentsTotal() *prometheus.CounterVec        { return paymentsTotal }
func GetPaymentAttemptsTotal() *prometheus.CounterVec { return paymentAttemptsTotal }
func GetRoutingSelectionsTotal() *prometheus.CounterVec {
	return routingSelectionsTotal
}
