// Package metrics provides Prometheus metrics for the resolver service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScoresTotal tracks scored pairs by resulting tier
	ScoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolver",
			Subsystem: "matching",
			Name:      "scores_total",
			Help:      "Total number of scored entity pairs by match tier",
		},
		[]string{"match_type"},
	)

	// ScoreDuration tracks the time spent computing a score
	ScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resolver",
			Subsystem: "matching",
			Name:      "score_duration_seconds",
			Help:      "Duration of uncached pair scoring in seconds",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		},
	)

	// CacheLookupsTotal tracks result cache lookups by outcome
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolver",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of result cache lookups by result",
		},
		[]string{"result"},
	)

	// CacheEntries tracks the number of entries in the local result cache
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "resolver",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of entries held by the local result cache",
		},
	)

	// CacheSweptTotal tracks expired entries removed by the sweeper
	CacheSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resolver",
			Subsystem: "cache",
			Name:      "swept_total",
			Help:      "Total number of expired cache entries removed by sweeps",
		},
	)

	// ConfigReloadsTotal tracks configuration reload attempts by status
	ConfigReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolver",
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Total number of configuration reloads by status",
		},
		[]string{"status"},
	)

	// DatasetMatchesTotal tracks dataset match requests by outcome
	DatasetMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolver",
			Subsystem: "dataset",
			Name:      "match_requests_total",
			Help:      "Total number of dataset match requests by outcome",
		},
		[]string{"outcome"},
	)

	// DatasetRowsImported tracks rows processed by CSV imports
	DatasetRowsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolver",
			Subsystem: "dataset",
			Name:      "rows_imported_total",
			Help:      "Total number of dataset rows processed by imports",
		},
		[]string{"status"},
	)
)

// RecordScore records one computed score
func RecordScore(matchType string, durationSeconds float64) {
	ScoresTotal.WithLabelValues(matchType).Inc()
	ScoreDuration.Observe(durationSeconds)
}

// RecordCacheLookup records a result cache lookup
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheSweep records a sweep and the resulting cache size
func RecordCacheSweep(removed, size int) {
	CacheSweptTotal.Add(float64(removed))
	CacheEntries.Set(float64(size))
}

// RecordConfigReload records a configuration reload attempt
func RecordConfigReload(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	ConfigReloadsTotal.WithLabelValues(status).Inc()
}

// RecordDatasetMatch records a dataset match request
func RecordDatasetMatch(matches int, err error) {
	outcome := "matched"
	switch {
	case err != nil:
		outcome = "error"
	case matches == 0:
		outcome = "no_match"
	}
	DatasetMatchesTotal.WithLabelValues(outcome).Inc()
}

// RecordImport records the outcome of a dataset import
func RecordImport(imported, skipped int) {
	DatasetRowsImported.WithLabelValues("imported").Add(float64(imported))
	DatasetRowsImported.WithLabelValues("skipped").Add(float64(skipped))
}

// Recorder forwards engine telemetry to the package collectors.
type Recorder struct{}

// ObserveScore implements matching.Observer.
func (Recorder) ObserveScore(matchType string, elapsed time.Duration) {
	RecordScore(matchType, elapsed.Seconds())
}

// ObserveCacheLookup implements matching.Observer.
func (Recorder) ObserveCacheLookup(result string) {
	RecordCacheLookup(result)
}
