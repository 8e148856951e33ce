// Package outbox persists and delivers domain events to Kafka.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Dispatcher polls the outbox table and publishes claimed events, one Kafka
// write per topic. Events that cannot be published are recorded in the DLQ;
// a failing topic does not hold back the others.
type Dispatcher struct {
	pool      *pgxpool.Pool
	producer  messageWriter
	registry  schemaRegistrar
	dlq       *DLQWriter
	interval  time.Duration
	batchSize int
	log       zerolog.Logger

	schemaMu  sync.Mutex
	schemaIDs map[string]int

	done chan struct{}
}

// NewDispatcher returns a Dispatcher claiming up to batchSize events every
// pollInterval.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		pool:      pool,
		producer:  producer,
		registry:  registry,
		dlq:       NewDLQWriter(pool),
		interval:  pollInterval,
		batchSize: batchSize,
		log:       log.With().Str("component", "outbox_dispatcher").Logger(),
		schemaIDs: make(map[string]int),
		done:      make(chan struct{}),
	}
}

// Start polls until ctx is cancelled. Run it in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error().Err(err).Msg("outbox batch failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	claimed, err := d.claim(ctx)
	if err != nil || len(claimed) == 0 {
		return err
	}

	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	byTopic, letters := d.encode(ctx, claimed)
	for _, topic := range slices.Sorted(maps.Keys(byTopic)) {
		pending := byTopic[topic]
		records := make([]kafka.Message, len(pending))
		for i, p := range pending {
			records[i] = p.record
		}
		if err := d.producer.WriteMessages(ctx, topic, records...); err != nil {
			d.log.Warn().Err(err).Str("topic", topic).Int("events", len(pending)).Msg("publish failed, recording in dlq")
			reason := fmt.Sprintf("%s (topic=%s)", err, topic)
			for _, p := range pending {
				letters = append(letters, deadLetter{msg: p.msg, reason: reason})
			}
			continue
		}
		countEvents(topic, outcomeDelivered, len(pending))
	}

	if err := d.dlq.writeAll(ctx, letters); err != nil {
		return fmt.Errorf("record dead letters: %w", err)
	}
	for _, l := range letters {
		countEvents(l.msg.Topic, outcomeDLQ, 1)
	}
	return d.markPublished(ctx, claimed)
}

type pendingRecord struct {
	msg    Message
	record kafka.Message
}

// encode groups routable messages by topic. Messages with an unknown event
// type or an unresolvable schema become dead letters.
func (d *Dispatcher) encode(ctx context.Context, messages []Message) (map[string][]pendingRecord, []deadLetter) {
	byTopic := make(map[string][]pendingRecord)
	var letters []deadLetter
	now := time.Now().UTC()

	for _, msg := range messages {
		route, err := RouteFor(msg.EventType)
		if err != nil {
			letters = append(letters, deadLetter{msg: msg, reason: err.Error()})
			continue
		}
		schemaID, err := d.schemaID(ctx, msg.SchemaSubject, route.Schema)
		if err != nil {
			letters = append(letters, deadLetter{msg: msg, reason: err.Error()})
			continue
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], pendingRecord{
			msg: msg,
			record: kafka.Message{
				Key:     []byte(msg.PartitionKey),
				Value:   encodeWireFormat(schemaID, msg.Payload),
				Headers: msg.headers(),
				Time:    now,
			},
		})
	}
	return byTopic, letters
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	key := subject + "\x00" + schema

	d.schemaMu.Lock()
	id, ok := d.schemaIDs[key]
	d.schemaMu.Unlock()
	if ok {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaMu.Lock()
	d.schemaIDs[key] = id
	d.schemaMu.Unlock()
	return id, nil
}

// claim locks unpublished rows, stamps claimed_at and returns them in
// insertion order.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	var claimed []Message
	err := pgx.BeginTxFunc(ctx, d.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT event_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
            FROM outbox
            WHERE published_at IS NULL
            ORDER BY event_id
            LIMIT $1
            FOR UPDATE SKIP LOCKED`, d.batchSize)
		if err != nil {
			return err
		}
		claimed, err = pgx.CollectRows(rows, scanMessage)
		if err != nil || len(claimed) == 0 {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, eventIDs(claimed))
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages))
	return err
}
