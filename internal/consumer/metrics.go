package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeHandled = "handled"
	outcomeFailed  = "failed"
	outcomePoison  = "poison"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka messages seen by the consumer, labeled by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "healthsync",
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent in the handler per message, retries included.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"event_type"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Produce time of the newest handled message per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, handleDuration, lastMessageGauge)
}

func observeOutcome(topic, eventType, outcome string) {
	messagesCounter.WithLabelValues(topic, eventType, outcome).Inc()
}

func observeHandled(msg Message, took time.Duration) {
	observeOutcome(msg.Topic, msg.EventType, outcomeHandled)
	handleDuration.WithLabelValues(msg.EventType).Observe(took.Seconds())
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}
