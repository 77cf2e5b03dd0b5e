package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentCallbacksTotal,
		paymentCallbackDuration,
		paymentDMTotal,
	)
}

var (
	// result: succeeded|failed|unknown|malformed|error
	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Provider callbacks received, by reconciliation result.",
		},
		[]string{"result"},
	)

	paymentCallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_callback_duration_seconds",
			Help:    "Duration of the provider callback handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// kind: success|failure, status: sent|error
	paymentDMTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_dm_total",
			Help: "Chat messages about payment outcomes by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)
)

func ObserveCallback(result string, started time.Time) {
	paymentCallbacksTotal.WithLabelValues(norm(result)).Inc()
	paymentCallbackDuration.WithLabelValues(norm(result)).Observe(time.Since(started).Seconds())
}

func IncPaymentDM(kind, status string) {
	paymentDMTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
