package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
)

// ApplySummary reports what Apply wrote.
type ApplySummary struct {
	Created    int `json:"created"`
	AutoMerged int `json:"auto_merged"`
	Skipped    int `json:"skipped"`
	domain.BatchSummary
}

// Engine discovers duplicate candidates and turns matches into merge requests.
// It is the only writer of the duplicate flag. Callers must not run two
// passes for the same user concurrently.
type Engine struct {
	activities domain.ActivityRepository
	merges     domain.MergeRepository
	detector   *Detector
	log        zerolog.Logger
	now        func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(activities domain.ActivityRepository, merges domain.MergeRepository, detector *Detector, log zerolog.Logger) *Engine {
	return &Engine{
		activities: activities,
		merges:     merges,
		detector:   detector,
		log:        log.With().Str("component", "merge_engine").Logger(),
		now:        time.Now,
	}
}

// FindCandidates compares a newly written activity against every
// non-duplicate activity of the same user starting within the window.
func (e *Engine) FindCandidates(ctx context.Context, userID, activityID string) ([]domain.DuplicateMatch, error) {
	activity, err := e.activities.GetActivity(ctx, userID, activityID)
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", activityID, err)
	}
	if activity.IsDuplicate {
		return nil, nil
	}

	window := e.detector.Window()
	candidates, err := e.activities.ListActivities(ctx, domain.ActivityQuery{
		UserID:            userID,
		From:              activity.StartedAt.Add(-window),
		To:                activity.StartedAt.Add(window),
		ExcludeID:         activity.ID,
		ExcludeDuplicates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	matches := make([]domain.DuplicateMatch, 0)
	for _, candidate := range candidates {
		if candidate.UserID != userID {
			continue
		}
		if match, ok := e.detector.Detect(*activity, candidate); ok {
			observability.RecordDuplicateMatch(match.Confidence)
			matches = append(matches, match)
		}
	}
	sortMatches(matches)

	e.log.Debug().
		Str("user_id", userID).
		Str("activity_id", activityID).
		Int("candidates", len(candidates)).
		Int("matches", len(matches)).
		Msg("candidate discovery finished")
	return matches, nil
}

// ScanUser runs pairwise detection over a user's trailing window of days.
// Each record is claimed by at most one match per pass.
func (e *Engine) ScanUser(ctx context.Context, userID string, days int) ([]domain.DuplicateMatch, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be > 0", domain.ErrInvalidInput)
	}
	now := e.now().UTC()
	records, err := e.activities.ListActivities(ctx, domain.ActivityQuery{
		UserID:            userID,
		From:              now.AddDate(0, 0, -days),
		To:                now,
		ExcludeDuplicates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.Before(records[j].StartedAt) })

	window := e.detector.Window()
	claimed := make(map[string]bool)
	matches := make([]domain.DuplicateMatch, 0)
	for i := range records {
		if claimed[records[i].ID] {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			if records[j].StartedAt.Sub(records[i].StartedAt) > window {
				break
			}
			if claimed[records[j].ID] {
				continue
			}
			match, ok := e.detector.Detect(records[i], records[j])
			if !ok {
				continue
			}
			observability.RecordDuplicateMatch(match.Confidence)
			claimed[match.DuplicateID] = true
			matches = append(matches, match)
			if claimed[records[i].ID] {
				break
			}
		}
	}
	sortMatches(matches)
	return matches, nil
}

// Apply writes the decision for every match: an automatic merge that flags
// the duplicate, or a pending review request that leaves both records visible.
// A pair that already has a request in either order, whatever its status, is
// skipped so a reviewed pair is never asked about again.
func (e *Engine) Apply(ctx context.Context, userID string, matches []domain.DuplicateMatch) ApplySummary {
	var summary ApplySummary
	merged := make(map[string]bool)

	for _, match := range matches {
		summary.Processed++
		item := match.PrimaryID + "/" + match.DuplicateID
		if match.PrimaryID == "" || match.DuplicateID == "" || match.PrimaryID == match.DuplicateID {
			summary.Fail(item, fmt.Errorf("%w: invalid pair", domain.ErrInvalidInput))
			observability.RecordBatchError("merge_apply")
			continue
		}
		if merged[match.DuplicateID] || merged[match.PrimaryID] {
			summary.Skipped++
			continue
		}
		decided, err := e.merges.HasMergeRequest(ctx, userID, match.PrimaryID, match.DuplicateID)
		if err != nil {
			e.recordFailure(&summary, item, err)
			continue
		}
		if decided {
			summary.Skipped++
			continue
		}

		now := e.now().UTC()
		request := domain.MergeRequest{
			ID:          uuid.NewString(),
			UserID:      userID,
			PrimaryID:   match.PrimaryID,
			DuplicateID: match.DuplicateID,
			Confidence:  match.Confidence,
			Signals:     match.Signals,
			CreatedAt:   now,
		}

		if match.ShouldAutoMerge {
			resolver := domain.ResolverAuto
			request.Status = domain.MergeStatusAutoMerged
			request.ResolvedAt = &now
			request.ResolvedBy = &resolver
			if err := e.merges.ApplyAutoMerge(ctx, request); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					summary.Skipped++
					continue
				}
				e.recordFailure(&summary, item, err)
				continue
			}
			merged[match.DuplicateID] = true
			summary.AutoMerged++
			summary.Succeeded++
			observability.RecordMergeDecision(string(domain.MergeStatusAutoMerged))
			e.log.Info().
				Str("user_id", userID).
				Str("primary_id", match.PrimaryID).
				Str("duplicate_id", match.DuplicateID).
				Int("confidence", match.Confidence).
				Msg("auto-merged duplicate activity")
			continue
		}

		request.Status = domain.MergeStatusPending
		if err := e.merges.CreateMergeRequest(ctx, request); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				summary.Skipped++
				continue
			}
			e.recordFailure(&summary, item, err)
			continue
		}
		summary.Created++
		summary.Succeeded++
		observability.RecordMergeDecision(string(domain.MergeStatusPending))
	}

	return summary
}

// ListMergeRequests returns a user's merge requests in one status.
func (e *Engine) ListMergeRequests(ctx context.Context, userID string, status domain.MergeStatus) ([]domain.MergeRequest, error) {
	return e.merges.ListMergeRequests(ctx, userID, status)
}

func (e *Engine) recordFailure(summary *ApplySummary, item string, err error) {
	level := e.log.Warn()
	if errors.Is(err, context.Canceled) {
		level = e.log.Debug()
	}
	level.Err(err).Str("pair", item).Msg("merge decision failed")
	summary.Fail(item, err)
	observability.RecordBatchError("merge_apply")
}

func sortMatches(matches []domain.DuplicateMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
}
