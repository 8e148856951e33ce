package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/healthsync/internal/events"
)

// Topics carrying healthsync events.
const (
	TopicActivityIngested = "healthsync.activity_ingested"
	TopicDuplicateFlagged = "healthsync.activity_duplicates"
	TopicMergeRequests    = "healthsync.merge_requests"
	TopicReadiness        = "healthsync.readiness"
)

// Route describes where an event type is published and how it is encoded.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]Route{
	events.TypeActivityIngested: {
		Topic:         TopicActivityIngested,
		SchemaSubject: TopicActivityIngested + "-value",
		Schema:        activityIngestedSchema,
	},
	events.TypeDuplicateFlagged: {
		Topic:         TopicDuplicateFlagged,
		SchemaSubject: TopicDuplicateFlagged + "-value",
		Schema:        duplicateFlaggedSchema,
	},
	events.TypeMergeRequestCreated: {
		Topic:         TopicMergeRequests,
		SchemaSubject: TopicMergeRequests + "-value",
		Schema:        mergeRequestCreatedSchema,
	},
	events.TypeReadinessUpdated: {
		Topic:         TopicReadiness,
		SchemaSubject: TopicReadiness + "-value",
		Schema:        readinessUpdatedSchema,
	},
}

// RouteFor returns the route for an event type.
func RouteFor(eventType string) (Route, error) {
	route, ok := catalog[eventType]
	if !ok {
		return Route{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	return route, nil
}

// Envelope is an event to be recorded in the outbox table. Events are keyed by
// user so one user's events stay ordered on a single partition.
type Envelope struct {
	UserID        string
	AggregateType string
	AggregateID   string
	EventType     string
	DedupeKey     string
	Payload       any
}

// Insert records the envelope inside the caller's transaction. A repeated
// dedupe key is ignored.
func Insert(ctx context.Context, tx pgx.Tx, env Envelope) error {
	route, err := RouteFor(env.EventType)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env.Payload)
	if err != nil {
		return err
	}
	dedupeKey := env.DedupeKey
	if dedupeKey == "" {
		dedupeKey = fmt.Sprintf("%s:%s", env.AggregateID, env.EventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		env.UserID,
		env.AggregateType,
		env.AggregateID,
		env.EventType,
		route.Topic,
		route.SchemaSubject,
		env.UserID,
		body,
		dedupeKey,
	)
	return err
}
