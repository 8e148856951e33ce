package domain

import "time"

// MergeStatus tracks the lifecycle of a merge request.
type MergeStatus string

const (
	MergeStatusPending    MergeStatus = "pending"
	MergeStatusAutoMerged MergeStatus = "auto_merged"
	MergeStatusApproved   MergeStatus = "approved"
	MergeStatusRejected   MergeStatus = "rejected"
)

// ResolverAuto marks merge requests resolved without a human.
const ResolverAuto = "auto"

// DuplicateMatch is the transient result of comparing two activities of the
// same user.
type DuplicateMatch struct {
	PrimaryID       string
	DuplicateID     string
	Confidence      int
	Signals         map[string]any
	ShouldAutoMerge bool
}

// MergeRequest is the persisted outcome of a duplicate match.
type MergeRequest struct {
	ID          string
	UserID      string
	PrimaryID   string
	DuplicateID string
	Confidence  int
	Status      MergeStatus
	Signals     map[string]any
	ResolvedAt  *time.Time
	ResolvedBy  *string
	CreatedAt   time.Time
}
