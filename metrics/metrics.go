package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CollectMetrics holds the Prometheus metrics for the collection endpoint.
type CollectMetrics struct {
	EventsTotal         *prometheus.CounterVec
	BatchesTotal        prometheus.Counter
	WriteKeyCacheHits   prometheus.Counter
	WriteKeyCacheMisses prometheus.Counter
}

// NewCollectMetrics initializes and registers the Prometheus metrics.
func NewCollectMetrics(reg prometheus.Registerer) *CollectMetrics {
	factory := promauto.With(reg)
	return &CollectMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsetrack",
			Subsystem: "collect",
			Name:      "events_total",
			Help:      "Total number of collected events by status.",
		}, []string{"status"}), // status: inserted, rejected, error
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsetrack",
			Subsystem: "collect",
			Name:      "batches_total",
			Help:      "Total number of collect requests carrying at least one event.",
		}),
		WriteKeyCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsetrack",
			Subsystem: "auth",
			Name:      "write_key_cache_hits_total",
			Help:      "Total number of write key cache hits.",
		}),
		WriteKeyCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsetrack",
			Subsystem: "auth",
			Name:      "write_key_cache_misses_total",
			Help:      "Total number of write key cache misses.",
		}),
	}
}
