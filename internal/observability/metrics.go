// Package observability registers the prometheus collectors of the reconciliation core.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})

	duplicateMatchesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "dedupe",
		Name:      "matches_total",
		Help:      "Number of duplicate matches at or above the review threshold.",
	})

	confidenceHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "healthsync",
		Subsystem: "dedupe",
		Name:      "match_confidence",
		Help:      "Confidence score of duplicate matches.",
		Buckets:   []float64{80, 85, 90, 95, 100},
	})

	mergeDecisionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "dedupe",
		Name:      "merge_decisions_total",
		Help:      "Merge requests written, labeled by resulting status.",
	}, []string{"status"})

	tssCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "training",
		Name:      "tss_calculated_total",
		Help:      "Training stress scores calculated, labeled by estimation method.",
	}, []string{"method"})

	readinessCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "training",
		Name:      "readiness_calculated_total",
		Help:      "Readiness records written, labeled by method and status band.",
	}, []string{"method", "status"})

	batchErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "batch",
		Name:      "item_errors_total",
		Help:      "Per-item failures inside batch operations.",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(
		activityPersistGauge,
		duplicateMatchesCounter,
		confidenceHistogram,
		mergeDecisionCounter,
		tssCounter,
		readinessCounter,
		batchErrorCounter,
	)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordDuplicateMatch counts a match and observes its confidence.
func RecordDuplicateMatch(confidence int) {
	duplicateMatchesCounter.Inc()
	confidenceHistogram.Observe(float64(confidence))
}

// RecordMergeDecision counts a written merge request.
func RecordMergeDecision(status string) {
	mergeDecisionCounter.WithLabelValues(status).Inc()
}

// RecordTSS counts a TSS calculation by method.
func RecordTSS(method string) {
	tssCounter.WithLabelValues(method).Inc()
}

// RecordReadiness counts a readiness upsert.
func RecordReadiness(method, status string) {
	readinessCounter.WithLabelValues(method, status).Inc()
}

// RecordBatchError counts a failed item in a batch operation.
func RecordBatchError(operation string) {
	batchErrorCounter.WithLabelValues(operation).Inc()
}

// MergeDecisionCount exposes the merge counter for tests.
func MergeDecisionCount(status string) prometheus.Counter {
	return mergeDecisionCounter.WithLabelValues(status)
}
