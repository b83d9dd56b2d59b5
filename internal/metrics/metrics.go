// Package metrics exposes prometheus counters for the resolution cache.
package metrics

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHitsTotal counts resolved values served from an item's cache.
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootforge_cache_hits_total",
			Help: "Total number of resolution cache hits by item family and field kind",
		},
		[]string{"family", "kind"}, // kind: scalar, dict
	)

	// CacheMissesTotal counts resolutions that had to walk the chain.
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootforge_cache_misses_total",
			Help: "Total number of resolution cache misses by item family and field kind",
		},
		[]string{"family", "kind"},
	)

	// CacheInvalidationsTotal counts cache entries dropped.
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootforge_cache_invalidations_total",
			Help: "Total number of cache invalidations by item family and scope",
		},
		[]string{"family", "scope"}, // self, descendant, all
	)

	// ResolutionErrorsTotal counts inherited fields nothing up the chain defines.
	ResolutionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootforge_resolution_errors_total",
			Help: "Total number of failed attribute resolutions by item family",
		},
		[]string{"family"},
	)
)

// Handler returns an HTTP handler for Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CounterValue retrieves the current value of a counter with the given labels.
// This is primarily intended for testing.
func CounterValue(counter *prometheus.CounterVec, labels ...string) (float64, error) {
	metric, err := counter.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}
	if pb.Counter != nil {
		return pb.Counter.GetValue(), nil
	}
	return 0, nil
}
