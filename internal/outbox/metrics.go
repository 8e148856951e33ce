package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded per outbox event.
const (
	outcomeDelivered = "delivered"
	outcomeDLQ       = "dlq"
)

// DLQ entry outcomes.
const (
	outcomeRequeued    = "requeued"
	outcomeRetry       = "retry_scheduled"
	outcomeQuarantined = "quarantined"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the dispatcher, by topic and outcome.",
	}, []string{"topic", "outcome"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "healthsync",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent delivering one claimed outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, by event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "Entries in the DLQ that are not quarantined.",
	})
)

func init() {
	prometheus.MustRegister(eventsCounter, batchDuration, dlqEntriesCounter, dlqBacklogGauge)
}

func countEvents(topic, outcome string, n int) {
	if n == 0 {
		return
	}
	eventsCounter.WithLabelValues(topic, outcome).Add(float64(n))
}

func countDLQEntry(entry dlqEntry, outcome string) {
	dlqEntriesCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return err
	}
	dlqBacklogGauge.Set(float64(count))
	return nil
}
