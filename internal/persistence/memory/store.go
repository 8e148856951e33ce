// Package memory provides an in-process store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"example.com/healthsync/internal/domain"
)

const baselineDays = 7

// Store implements domain.Store in memory.
type Store struct {
	mu          sync.RWMutex
	activities  map[string]domain.Activity
	idempotency map[string]string
	merges      []domain.MergeRequest
	sleep       map[string]domain.SleepLog
	readiness   map[string]domain.Readiness
	loads       map[string]domain.TrainingLoad
	profiles    map[string]domain.AthleteProfile
}

var _ domain.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:  make(map[string]domain.Activity),
		idempotency: make(map[string]string),
		sleep:       make(map[string]domain.SleepLog),
		readiness:   make(map[string]domain.Readiness),
		loads:       make(map[string]domain.TrainingLoad),
		profiles:    make(map[string]domain.AthleteProfile),
	}
}

func dayKey(userID string, date time.Time) string {
	return userID + "|" + domain.DateOf(date).Format(time.DateOnly)
}

// FindByIdempotency implements domain.ActivityRepository.
func (s *Store) FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idempotency[userID+"|"+idempotencyKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	activity := s.activities[id].Clone()
	return &activity, nil
}

// CreateActivity implements domain.ActivityRepository.
func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activities[activity.ID]; exists {
		return fmt.Errorf("activity %s already exists", activity.ID)
	}
	if idempotencyKey != "" {
		key := activity.UserID + "|" + idempotencyKey
		if _, exists := s.idempotency[key]; exists {
			return fmt.Errorf("idempotency key %q already used", idempotencyKey)
		}
		s.idempotency[key] = activity.ID
	}
	s.activities[activity.ID] = activity.Clone()
	return nil
}

// GetActivity implements domain.ActivityRepository.
func (s *Store) GetActivity(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[activityID]
	if !ok || activity.UserID != userID {
		return nil, fmt.Errorf("activity %s: %w", activityID, domain.ErrNotFound)
	}
	out := activity.Clone()
	return &out, nil
}

// ListActivities implements domain.ActivityRepository.
func (s *Store) ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for _, activity := range s.activities {
		if activity.UserID != query.UserID || activity.ID == query.ExcludeID {
			continue
		}
		if query.ExcludeDuplicates && activity.IsDuplicate {
			continue
		}
		if !query.From.IsZero() && activity.StartedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && activity.StartedAt.After(query.To) {
			continue
		}
		if query.ActivityType != "" && !strings.EqualFold(activity.ActivityType, query.ActivityType) {
			continue
		}
		out = append(out, activity.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// ListByUser implements domain.ActivityRepository, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	all, _ := s.ListActivities(ctx, domain.ActivityQuery{UserID: userID})
	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].StartedAt.After(all[j].StartedAt)
	})

	results := make([]domain.Activity, 0, limit)
	for _, activity := range all {
		if cursor != nil && !before(activity, *cursor) {
			continue
		}
		results = append(results, activity)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

func before(a domain.Activity, c domain.Cursor) bool {
	if a.StartedAt.Equal(c.StartedAt) {
		return a.ID < c.ID
	}
	return a.StartedAt.Before(c.StartedAt)
}

// SetActivityTSS implements domain.ActivityRepository.
func (s *Store) SetActivityTSS(ctx context.Context, userID, activityID string, tss int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[activityID]
	if !ok || activity.UserID != userID {
		return fmt.Errorf("activity %s: %w", activityID, domain.ErrNotFound)
	}
	activity.TSS = &tss
	activity.UpdatedAt = time.Now().UTC()
	s.activities[activityID] = activity
	return nil
}

// HasMergeRequest implements domain.MergeRepository.
func (s *Store) HasMergeRequest(ctx context.Context, userID, firstID, secondID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPair(userID, firstID, secondID), nil
}

func (s *Store) hasPair(userID, firstID, secondID string) bool {
	for _, request := range s.merges {
		if request.UserID != userID {
			continue
		}
		if (request.PrimaryID == firstID && request.DuplicateID == secondID) ||
			(request.PrimaryID == secondID && request.DuplicateID == firstID) {
			return true
		}
	}
	return false
}

// ApplyAutoMerge implements domain.MergeRepository.
func (s *Store) ApplyAutoMerge(ctx context.Context, request domain.MergeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	duplicate, ok := s.activities[request.DuplicateID]
	if !ok || duplicate.UserID != request.UserID || duplicate.IsDuplicate {
		return fmt.Errorf("activity %s: %w", request.DuplicateID, domain.ErrNotFound)
	}
	if primary, ok := s.activities[request.PrimaryID]; !ok || primary.UserID != request.UserID {
		return fmt.Errorf("activity %s: %w", request.PrimaryID, domain.ErrNotFound)
	}
	if s.hasPair(request.UserID, request.PrimaryID, request.DuplicateID) {
		return fmt.Errorf("merge request %s/%s: %w", request.PrimaryID, request.DuplicateID, domain.ErrConflict)
	}
	primaryID := request.PrimaryID
	duplicate.IsDuplicate = true
	duplicate.DuplicateOf = &primaryID
	duplicate.UpdatedAt = time.Now().UTC()
	s.activities[request.DuplicateID] = duplicate
	s.merges = append(s.merges, request)
	return nil
}

// CreateMergeRequest implements domain.MergeRepository.
func (s *Store) CreateMergeRequest(ctx context.Context, request domain.MergeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasPair(request.UserID, request.PrimaryID, request.DuplicateID) {
		return fmt.Errorf("merge request %s/%s: %w", request.PrimaryID, request.DuplicateID, domain.ErrConflict)
	}
	s.merges = append(s.merges, request)
	return nil
}

// ListMergeRequests implements domain.MergeRepository. An empty status lists all.
func (s *Store) ListMergeRequests(ctx context.Context, userID string, status domain.MergeStatus) ([]domain.MergeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MergeRequest, 0)
	for _, request := range s.merges {
		if request.UserID != userID || (status != "" && request.Status != status) {
			continue
		}
		out = append(out, request)
	}
	return out, nil
}

// UpsertSleepLog implements domain.SleepRepository keyed by user, date and source.
func (s *Store) UpsertSleepLog(ctx context.Context, log domain.SleepLog) (domain.SleepLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Date = domain.DateOf(log.Date)
	key := dayKey(log.UserID, log.Date) + "|" + string(log.Source)
	if existing, ok := s.sleep[key]; ok {
		log.ID = existing.ID
		log.CreatedAt = existing.CreatedAt
	}
	s.sleep[key] = log.Clone()
	return log, nil
}

// ListSleepLogs implements domain.SleepRepository. Dates are inclusive.
func (s *Store) ListSleepLogs(ctx context.Context, userID string, from, to time.Time) ([]domain.SleepLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sleepRange(userID, domain.DateOf(from), domain.DateOf(to)), nil
}

func (s *Store) sleepRange(userID string, from, to time.Time) []domain.SleepLog {
	out := make([]domain.SleepLog, 0)
	for _, log := range s.sleep {
		if log.UserID != userID || log.Date.Before(from) || log.Date.After(to) {
			continue
		}
		out = append(out, log.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Source < out[j].Source
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// UpsertReadiness implements domain.ReadinessRepository.
func (s *Store) UpsertReadiness(ctx context.Context, readiness domain.Readiness) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness[dayKey(readiness.UserID, readiness.Date)] = readiness
	return nil
}

// GetReadiness implements domain.ReadinessRepository.
func (s *Store) GetReadiness(ctx context.Context, userID string, date time.Time) (*domain.Readiness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	readiness, ok := s.readiness[dayKey(userID, date)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &readiness, nil
}

// UpsertTrainingLoad implements domain.TrainingLoadRepository.
func (s *Store) UpsertTrainingLoad(ctx context.Context, load domain.TrainingLoad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[dayKey(load.UserID, load.Date)] = load
	return nil
}

// GetTrainingLoad implements domain.TrainingLoadRepository.
func (s *Store) GetTrainingLoad(ctx context.Context, userID string, date time.Time) (*domain.TrainingLoad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	load, ok := s.loads[dayKey(userID, date)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &load, nil
}

// GetProfile implements domain.ProfileRepository.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.AthleteProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &profile, nil
}

// UpsertProfile implements domain.ProfileRepository.
func (s *Store) UpsertProfile(ctx context.Context, profile domain.AthleteProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

// HRVBaseline implements domain.BaselineProvider as the mean nightly HRV over
// the seven days ending at end.
func (s *Store) HRVBaseline(ctx context.Context, userID string, end time.Time) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := domain.DateOf(end)
	values := make([]float64, 0, baselineDays)
	for _, log := range s.sleepRange(userID, last.AddDate(0, 0, -(baselineDays-1)), last) {
		if log.AvgHRV != nil && *log.AvgHRV > 0 {
			values = append(values, *log.AvgHRV)
		}
	}
	if len(values) == 0 {
		return 0, false, nil
	}
	return stat.Mean(values, nil), true, nil
}

// ListActiveUsers implements domain.UserDirectory.
func (s *Store) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, activity := range s.activities {
		if !activity.UpdatedAt.Before(since) || !activity.StartedAt.Before(since) {
			seen[activity.UserID] = struct{}{}
		}
	}
	for _, log := range s.sleep {
		if !log.UpdatedAt.Before(since) {
			seen[log.UserID] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for user := range seen {
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}
