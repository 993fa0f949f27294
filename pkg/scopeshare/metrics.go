package scopeshare

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics holds the Prometheus metrics for one Store.
type storeMetrics struct {
	setsTotal           prometheus.Counter
	notificationsTotal  prometheus.Counter
	suppressedTotal     prometheus.Counter
	activeSubscriptions prometheus.Gauge
}

// newStoreMetrics initializes the Prometheus metrics.
func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)

	return &storeMetrics{
		setsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scopeshare",
			Name:      "sets_total",
			Help:      "Total number of store writes",
		}),
		notificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scopeshare",
			Name:      "notifications_total",
			Help:      "Total number of values delivered to subscriptions",
		}),
		suppressedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "scopeshare",
			Name:      "suppressed_duplicates_total",
			Help:      "Total number of consecutive duplicate values suppressed",
		}),
		activeSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "scopeshare",
			Name:      "active_subscriptions",
			Help:      "Number of live store subscriptions",
		}),
	}
}
