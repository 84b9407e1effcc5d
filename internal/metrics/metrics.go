package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the delivery engine.
var (
	DeliveriesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_created_total",
			Help: "Total number of delivery rows created by event fan-out",
		},
	)

	DeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_delivery_attempts_total",
			Help: "Total delivery attempts by outcome",
		},
		[]string{"outcome"}, // delivered, failed, exhausted
	)

	DeliveryAttemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_attempt_duration_seconds",
			Help:    "Duration of outbound webhook HTTP attempts",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all Prometheus metrics.
func Register() {
	prometheus.MustRegister(DeliveriesCreatedTotal)
	prometheus.MustRegister(DeliveryAttemptsTotal)
	prometheus.MustRegister(DeliveryAttemptDuration)
}
