package domain

import (
	"context"
	"time"
)

// ActivityRepository captures activity persistence. Missing rows surface as
// ErrNotFound, empty ranges as empty slices, anything else is transient.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*Activity, error)
	CreateActivity(ctx context.Context, activity Activity, idempotencyKey string) error
	GetActivity(ctx context.Context, userID, activityID string) (*Activity, error)
	ListActivities(ctx context.Context, query ActivityQuery) ([]Activity, error)
	ListByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	SetActivityTSS(ctx context.Context, userID, activityID string, tss int) error
}

// MergeRepository persists merge decisions. ApplyAutoMerge flags the duplicate
// and records the resolved request atomically. A pair holds at most one
// request in either order; a second write returns ErrConflict.
type MergeRepository interface {
	HasMergeRequest(ctx context.Context, userID, firstID, secondID string) (bool, error)
	ApplyAutoMerge(ctx context.Context, request MergeRequest) error
	CreateMergeRequest(ctx context.Context, request MergeRequest) error
	ListMergeRequests(ctx context.Context, userID string, status MergeStatus) ([]MergeRequest, error)
}

// SleepRepository stores raw per-source sleep logs.
type SleepRepository interface {
	UpsertSleepLog(ctx context.Context, log SleepLog) (SleepLog, error)
	ListSleepLogs(ctx context.Context, userID string, from, to time.Time) ([]SleepLog, error)
}

// ReadinessRepository upserts one readiness record per user and date.
type ReadinessRepository interface {
	UpsertReadiness(ctx context.Context, readiness Readiness) error
	GetReadiness(ctx context.Context, userID string, date time.Time) (*Readiness, error)
}

// TrainingLoadRepository upserts one training-load record per user and date.
type TrainingLoadRepository interface {
	UpsertTrainingLoad(ctx context.Context, load TrainingLoad) error
	GetTrainingLoad(ctx context.Context, userID string, date time.Time) (*TrainingLoad, error)
}

// ProfileRepository resolves optional athlete anchors.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*AthleteProfile, error)
	UpsertProfile(ctx context.Context, profile AthleteProfile) error
}

// BaselineProvider returns the trailing 7-day HRV baseline ending at end.
// ok is false when no baseline can be computed.
type BaselineProvider interface {
	HRVBaseline(ctx context.Context, userID string, end time.Time) (baseline float64, ok bool, err error)
}

// UserDirectory lists users with recent activity for batch jobs.
type UserDirectory interface {
	ListActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

// Store is the full persistence surface used by the binaries.
type Store interface {
	ActivityRepository
	MergeRepository
	SleepRepository
	ReadinessRepository
	TrainingLoadRepository
	ProfileRepository
	BaselineProvider
	UserDirectory
}
