// Package domain defines the entities and persistence contracts of the health sync service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service handles raw record ingestion.
type Service struct {
	activities ActivityRepository
	sleep      SleepRepository
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(activities ActivityRepository, sleep SleepRepository) *Service {
	return &Service{activities: activities, sleep: sleep, now: time.Now}
}

// CreateActivityInput captures an activity handed over by a sync job or the API.
type CreateActivityInput struct {
	Activity       Activity
	IdempotencyKey string
}

// CreateActivity stores a raw activity. A replay of the same idempotency key
// returns the original record and true.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, bool, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.activities.FindByIdempotency(ctx, input.Activity.UserID, input.IdempotencyKey)
		switch {
		case err == nil && existing != nil:
			return existing, true, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	if err := validateActivity(input.Activity); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	activity := input.Activity.Clone()
	activity.ID = uuid.NewString()
	activity.Source = ParseSource(string(activity.Source))
	activity.ActivityType = strings.ToLower(strings.TrimSpace(activity.ActivityType))
	activity.StartedAt = activity.StartedAt.UTC()
	activity.IsDuplicate = false
	activity.DuplicateOf = nil
	activity.TSS = nil
	activity.CreatedAt = now
	activity.UpdatedAt = now
	if !activity.IsStrength() {
		activity.Exercises = nil
	}

	if err := s.activities.CreateActivity(ctx, activity, input.IdempotencyKey); err != nil {
		return nil, false, fmt.Errorf("create activity: %w", err)
	}
	return &activity, false, nil
}

// GetActivity fetches by ID for the owning user.
func (s *Service) GetActivity(ctx context.Context, userID, activityID string) (*Activity, error) {
	return s.activities.GetActivity(ctx, userID, activityID)
}

// ListActivitiesByUser fetches activities with cursor pagination.
func (s *Service) ListActivitiesByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.activities.ListByUser(ctx, userID, cursor, limit)
}

// UpsertSleepLog stores a night of sleep for one source, replacing any
// earlier log from the same source for that night.
func (s *Service) UpsertSleepLog(ctx context.Context, log SleepLog) (SleepLog, error) {
	if strings.TrimSpace(log.UserID) == "" {
		return SleepLog{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if log.Date.IsZero() {
		return SleepLog{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if log.SleepScore != nil && (*log.SleepScore < 0 || *log.SleepScore > 100) {
		return SleepLog{}, fmt.Errorf("%w: sleep_score must be within 0-100", ErrInvalidInput)
	}

	now := s.now().UTC()
	log = log.Clone()
	log.Date = DateOf(log.Date)
	log.Source = ParseSource(string(log.Source))
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Quality == "" && log.SleepScore != nil {
		log.Quality = QualityForScore(*log.SleepScore)
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	stored, err := s.sleep.UpsertSleepLog(ctx, log)
	if err != nil {
		return SleepLog{}, fmt.Errorf("upsert sleep log: %w", err)
	}
	return stored, nil
}

func validateActivity(a Activity) error {
	if strings.TrimSpace(a.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(a.ActivityType) == "" {
		return fmt.Errorf("%w: activity_type is required", ErrInvalidInput)
	}
	if a.StartedAt.IsZero() {
		return fmt.Errorf("%w: started_at is required", ErrInvalidInput)
	}
	if a.DurationMin < 0 {
		return fmt.Errorf("%w: duration_min must be >= 0", ErrInvalidInput)
	}
	if strings.TrimSpace(string(a.Source)) == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidInput)
	}
	return nil
}
