package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afterschool_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	StoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "afterschool_store_op_seconds",
			Help:    "Duration of store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	OrdersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "afterschool_orders_placed_total",
			Help: "Total orders placed",
		},
	)

	SeatsRestored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "afterschool_seats_restored_total",
			Help: "Total lesson seats restored by order cancellation",
		},
	)

	OutboxLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "afterschool_outbox_lag_seconds",
			Help: "Age of the oldest outbox record published in the last pass",
		},
	)

	RabbitPublishRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "afterschool_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "afterschool_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)

func apiCollectors() []prometheus.Collector {
	return []prometheus.Collector{RequestsTotal, StoreOpDuration, OrdersPlaced, SeatsRestored, RateLimitExceeded}
}

func outboxCollectors() []prometheus.Collector {
	return []prometheus.Collector{OutboxLag, RabbitPublishRetries}
}

// InitMetrics registers the metrics the API process updates.
func InitMetrics() {
	prometheus.MustRegister(apiCollectors()...)
}

// InitOutboxMetrics registers the metrics the outbox publisher updates.
func InitOutboxMetrics() {
	prometheus.MustRegister(outboxCollectors()...)
}
