package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const maxRetryDelay = time.Hour

// DLQManager replays dead letters into the outbox. Entries that keep failing,
// or that can never be routed, are quarantined.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
	log        zerolog.Logger
}

// NewDLQManager returns a manager that allows maxRetries replay attempts with
// exponential backoff starting at baseDelay.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, log zerolog.Logger) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{
		pool:       pool,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		log:        log.With().Str("component", "dlq_manager").Logger(),
	}
}

// RunOnce handles up to batchSize due entries and reports how many were
// requeued. Errors on individual entries are joined; the rest of the batch
// is still processed.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	entries, err := m.due(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	requeued := 0
	var errs []error
	for _, entry := range entries {
		outcome, err := m.handle(ctx, entry)
		if err != nil {
			m.log.Warn().Err(err).Int64("dlq_id", entry.ID).Msg("dlq entry failed")
			errs = append(errs, err)
			continue
		}
		countDLQEntry(entry, outcome)
		if outcome == outcomeRequeued {
			requeued++
		}
	}

	if err := refreshBacklog(ctx, m.pool); err != nil {
		m.log.Debug().Err(err).Msg("dlq backlog refresh failed")
	}
	return requeued, errors.Join(errs...)
}

func (m *DLQManager) due(ctx context.Context, limit int) ([]dlqEntry, error) {
	rows, err := m.pool.Query(ctx, `SELECT dlq_id, user_id, event_id, event_type, topic, payload, aggregate_type, aggregate_id, COALESCE(schema_subject, ''), partition_key, retry_count
        FROM outbox_dlq
        WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
        ORDER BY created_at
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dlqEntry, error) {
		var e dlqEntry
		err := row.Scan(&e.ID, &e.UserID, &e.EventID, &e.EventType, &e.Topic, &e.Payload, &e.AggregateType, &e.AggregateID, &e.SchemaSubject, &e.PartitionKey, &e.RetryCount)
		return e, err
	})
}

func (m *DLQManager) handle(ctx context.Context, entry dlqEntry) (string, error) {
	if entry.RetryCount >= m.maxRetries {
		return outcomeQuarantined, m.quarantine(ctx, entry, "retry limit reached")
	}
	if reason := entry.unroutable(); reason != "" {
		return outcomeQuarantined, m.quarantine(ctx, entry, reason)
	}

	err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := entry.requeue(ctx, tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID)
		return err
	})
	if err == nil {
		return outcomeRequeued, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, schedErr := m.pool.Exec(ctx, `UPDATE outbox_dlq
        SET retry_count = retry_count + 1, last_attempt_at = NOW(), next_retry_at = NOW() + $1::interval, reason = $2
        WHERE dlq_id = $3`, delay, err.Error(), entry.ID); schedErr != nil {
		return "", errors.Join(err, schedErr)
	}
	return outcomeRetry, nil
}

func (m *DLQManager) quarantine(ctx context.Context, entry dlqEntry, reason string) error {
	if _, err := m.pool.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, reason, entry.ID); err != nil {
		return err
	}
	m.log.Warn().Int64("dlq_id", entry.ID).Str("event_type", entry.EventType).Str("reason", reason).Msg("dlq entry quarantined")
	return nil
}

// backoffDelay doubles baseDelay per attempt, capped at maxRetryDelay.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

type dlqEntry struct {
	ID            int64
	UserID        string
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

// unroutable explains why the entry can never be delivered, or returns "".
func (e dlqEntry) unroutable() string {
	if e.SchemaSubject == "" {
		return "missing schema_subject"
	}
	if _, err := RouteFor(e.EventType); err != nil {
		return err.Error()
	}
	return ""
}

// requeue inserts the entry back into the outbox as a fresh event.
func (e dlqEntry) requeue(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.UserID, e.AggregateType, e.AggregateID, e.EventType, e.Topic, e.SchemaSubject, e.PartitionKey, e.Payload)
	if err != nil {
		return fmt.Errorf("requeue dlq entry %d: %w", e.ID, err)
	}
	return nil
}
