package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
)

// Service builds reconciled views at read time.
type Service struct {
	activities domain.ActivityRepository
	sleep      domain.SleepRepository
	aggregator *Aggregator
	log        zerolog.Logger
}

// NewService constructs a Service.
func NewService(activities domain.ActivityRepository, sleep domain.SleepRepository, aggregator *Aggregator, log zerolog.Logger) *Service {
	return &Service{
		activities: activities,
		sleep:      sleep,
		aggregator: aggregator,
		log:        log.With().Str("component", "reconcile_service").Logger(),
	}
}

// SleepForDate returns the single reconciled view of one night. It returns
// domain.ErrNoData when no source logged that night.
func (s *Service) SleepForDate(ctx context.Context, userID string, date time.Time) (*AggregatedSleep, error) {
	day := domain.DateOf(date)
	logs, err := s.sleep.ListSleepLogs(ctx, userID, day, day)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Time("date", day).Msg("sleep lookup failed")
		return nil, fmt.Errorf("list sleep logs: %w", err)
	}
	agg, ok := s.aggregator.Sleep(logs)
	if !ok {
		return nil, domain.ErrNoData
	}
	return &agg, nil
}

// ActivitiesForSlot folds the non-duplicate activities of one type on one day.
// An empty activityType folds every activity of the day.
func (s *Service) ActivitiesForSlot(ctx context.Context, userID string, date time.Time, activityType string) (*AggregatedActivity, error) {
	day := domain.DateOf(date)
	records, err := s.activities.ListActivities(ctx, domain.ActivityQuery{
		UserID:            userID,
		From:              day,
		To:                day.Add(24*time.Hour - time.Nanosecond),
		ActivityType:      strings.ToLower(strings.TrimSpace(activityType)),
		ExcludeDuplicates: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Time("date", day).Msg("activity lookup failed")
		return nil, fmt.Errorf("list activities: %w", err)
	}
	agg, ok := s.aggregator.Activities(records)
	if !ok {
		return nil, domain.ErrNoData
	}
	return &agg, nil
}
