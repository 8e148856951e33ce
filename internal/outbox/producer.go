package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// ProducerOption tunes the per-topic writers.
type ProducerOption func(*KafkaProducer)

// WithBatchTimeout bounds how long a writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

// WithProducerLogger routes kafka-go error logs through zerolog.
func WithProducerLogger(log zerolog.Logger) ProducerOption {
	return func(p *KafkaProducer) {
		p.log = log.With().Str("component", "kafka_producer").Logger()
	}
}

// KafkaProducer lazily manages writers per topic. Records are hash
// partitioned on their key so every event for a user lands on the same
// partition and keeps its order.
type KafkaProducer struct {
	brokers      []string
	batchTimeout time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:      brokers,
		batchTimeout: 50 * time.Millisecond,
		log:          zerolog.Nop(),
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerForTopic(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	errLog := p.log.With().Str("topic", topic).Logger()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: p.batchTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			errLog.Error().Msgf(msg, args...)
		}),
	}
	p.writers[topic] = writer
	return writer
}

// Close flushes and closes every writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	writers := p.writers
	p.writers = make(map[string]*kafka.Writer)
	p.mu.Unlock()

	var errs []error
	for topic, writer := range writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}
