// Package pipeline runs the post-ingest work for a user: duplicate detection,
// merge decisions and TSS estimation. At most one pass per user runs at a
// time within a process; Kafka partitioning by user extends that across
// consumers.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/dedupe"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/training"
)

// Result describes one sync pass over a newly ingested activity.
type Result struct {
	ActivityID string              `json:"activity_id"`
	Matches    int                 `json:"matches"`
	Merges     dedupe.ApplySummary `json:"merges"`
	MergedAway bool                `json:"merged_away"`
	TSS        *int                `json:"tss,omitempty"`
}

// Syncer runs the pipeline under a per-user lock.
type Syncer struct {
	activities domain.ActivityRepository
	engine     *dedupe.Engine
	tss        *training.TSSService
	locks      *userLocker
	log        zerolog.Logger
}

// NewSyncer constructs a Syncer.
func NewSyncer(activities domain.ActivityRepository, engine *dedupe.Engine, tss *training.TSSService, log zerolog.Logger) *Syncer {
	return &Syncer{
		activities: activities,
		engine:     engine,
		tss:        tss,
		locks:      newUserLocker(),
		log:        log.With().Str("component", "sync_pipeline").Logger(),
	}
}

// Sync deduplicates a newly ingested activity and estimates its TSS unless it
// was merged into another record.
func (s *Syncer) Sync(ctx context.Context, userID, activityID string) (Result, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	result := Result{ActivityID: activityID}
	matches, err := s.engine.FindCandidates(ctx, userID, activityID)
	if err != nil {
		return result, fmt.Errorf("find candidates: %w", err)
	}
	result.Matches = len(matches)
	if len(matches) > 0 {
		result.Merges = s.engine.Apply(ctx, userID, matches)
	}

	activity, err := s.activities.GetActivity(ctx, userID, activityID)
	if err != nil {
		return result, fmt.Errorf("reload activity: %w", err)
	}
	if activity.IsDuplicate {
		result.MergedAway = true
		return result, nil
	}

	tss, err := s.tss.CalculateAndStore(ctx, userID, activityID, false)
	switch {
	case err == nil:
		result.TSS = &tss
	case errors.Is(err, domain.ErrInvalidInput):
		s.log.Debug().Err(err).Str("activity_id", activityID).Msg("tss skipped")
	default:
		return result, fmt.Errorf("calculate tss: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("activity_id", activityID).
		Int("matches", result.Matches).
		Int("auto_merged", result.Merges.AutoMerged).
		Int("review_requests", result.Merges.Created).
		Msg("activity synced")
	return result, nil
}

// Scan runs pairwise detection over a user's trailing window and applies the
// matches.
func (s *Syncer) Scan(ctx context.Context, userID string, days int) (dedupe.ApplySummary, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	matches, err := s.engine.ScanUser(ctx, userID, days)
	if err != nil {
		return dedupe.ApplySummary{}, err
	}
	return s.engine.Apply(ctx, userID, matches), nil
}

// Deduplicate finds candidates for one activity and applies the decisions
// without touching TSS.
func (s *Syncer) Deduplicate(ctx context.Context, userID, activityID string) (dedupe.ApplySummary, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	matches, err := s.engine.FindCandidates(ctx, userID, activityID)
	if err != nil {
		return dedupe.ApplySummary{}, err
	}
	return s.engine.Apply(ctx, userID, matches), nil
}
