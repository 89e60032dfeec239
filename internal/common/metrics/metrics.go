// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_requests_total",
			Help: "Total number of filter requests by response type",
		},
		[]string{"response_type"},
	)

	FilterRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "filter_request_duration_seconds",
			Help: "Duration of filter request processing in seconds",
		},
		[]string{"response_type"},
	)

	ValueFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "value_fetches_total",
			Help: "Total number of distinct value fetches by backend and status",
		},
		[]string{"backend", "status"},
	)

	ValueCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "value_cache_hits_total",
			Help: "Total number of value cache hits",
		},
	)

	ValueCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "value_cache_misses_total",
			Help: "Total number of value cache misses (including stale entries)",
		},
	)

	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Number of conversations currently held in the state store",
		},
	)
)
