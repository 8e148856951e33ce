package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// deadLetter is an outbox message paired with the reason it could not be
// delivered.
type deadLetter struct {
	msg    Message
	reason string
}

// DLQWriter persists undeliverable outbox messages in outbox_dlq.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter returns a writer backed by pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

const insertDeadLetter = `INSERT INTO outbox_dlq (user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`

// Write records a single message with its failure reason.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	return w.writeAll(ctx, []deadLetter{{msg: msg, reason: reason}})
}

// writeAll records every letter in one round trip.
func (w *DLQWriter) writeAll(ctx context.Context, letters []deadLetter) error {
	if len(letters) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range letters {
		m := l.msg
		batch.Queue(insertDeadLetter,
			m.UserID, m.EventID, m.EventType, m.Topic, m.Payload, l.reason,
			m.AggregateType, m.AggregateID, m.SchemaSubject, m.PartitionKey,
		)
	}
	return w.pool.SendBatch(ctx, batch).Close()
}
