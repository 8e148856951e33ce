// Package events defines the payloads published through the outbox.
package events

import "time"

// Event type names recorded in the outbox.
const (
	TypeActivityIngested    = "activity.ingested"
	TypeDuplicateFlagged    = "activity.duplicate_flagged"
	TypeMergeRequestCreated = "merge_request.created"
	TypeReadinessUpdated    = "readiness.updated"
)

// ActivityIngested is emitted when a source writes a new activity. Consumers
// run duplicate detection and TSS estimation from it.
type ActivityIngested struct {
	ActivityID   string    `json:"activity_id"`
	UserID       string    `json:"user_id"`
	Source       string    `json:"source"`
	ActivityType string    `json:"activity_type"`
	StartedAt    time.Time `json:"started_at"`
	DurationMin  float64   `json:"duration_min"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// DuplicateFlagged is emitted when an activity is merged into a primary.
type DuplicateFlagged struct {
	ActivityID  string    `json:"activity_id"`
	UserID      string    `json:"user_id"`
	DuplicateOf string    `json:"duplicate_of"`
	Confidence  int       `json:"confidence"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// MergeRequestCreated is emitted when a match needs human review.
type MergeRequestCreated struct {
	MergeRequestID string    `json:"merge_request_id"`
	UserID         string    `json:"user_id"`
	PrimaryID      string    `json:"primary_id"`
	DuplicateID    string    `json:"duplicate_id"`
	Confidence     int       `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReadinessUpdated is emitted when a readiness record is written.
type ReadinessUpdated struct {
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Score     int       `json:"score"`
	Status    string    `json:"status"`
	Method    string    `json:"method"`
	UpdatedAt time.Time `json:"updated_at"`
}
