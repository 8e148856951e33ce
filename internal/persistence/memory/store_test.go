package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
)

var day = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, id string, start time.Time) {
	t.Helper()
	require.NoError(t, s.CreateActivity(context.Background(), domain.Activity{
		ID:           id,
		UserID:       "user-1",
		Source:       domain.SourceGarmin,
		StartedAt:    start,
		ActivityType: "running",
		DurationMin:  30,
		UpdatedAt:    start,
	}, "key-"+id))
}

func TestActivityLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a1", day.Add(7*time.Hour))

	found, err := s.FindByIdempotency(ctx, "user-1", "key-a1")
	require.NoError(t, err)
	require.Equal(t, "a1", found.ID)

	_, err = s.FindByIdempotency(ctx, "user-2", "key-a1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Error(t, s.CreateActivity(ctx, domain.Activity{ID: "a2", UserID: "user-1"}, "key-a1"))

	_, err = s.GetActivity(ctx, "user-2", "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.SetActivityTSS(ctx, "user-1", "a1", 67))
	got, err := s.GetActivity(ctx, "user-1", "a1")
	require.NoError(t, err)
	require.Equal(t, 67, *got.TSS)

	*got.TSS = 1
	again, _ := s.GetActivity(ctx, "user-1", "a1")
	require.Equal(t, 67, *again.TSS)

	require.ErrorIs(t, s.SetActivityTSS(ctx, "user-1", "missing", 10), domain.ErrNotFound)
}

func TestListActivitiesFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i, id := range []string{"a1", "a2", "a3"} {
		seed(t, s, id, day.Add(time.Duration(6+i)*time.Hour))
	}

	out, err := s.ListActivities(ctx, domain.ActivityQuery{UserID: "user-1", From: day.Add(7 * time.Hour), To: day.Add(8 * time.Hour), ActivityType: "RUNNING", ExcludeID: "a3"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "a2", out[0].ID)

	empty, err := s.ListActivities(ctx, domain.ActivityQuery{UserID: "user-9"})
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	page, next, err := s.ListByUser(ctx, "user-1", nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a3", "a2"}, []string{page[0].ID, page[1].ID})
	require.NotNil(t, next)

	page, _, err = s.ListByUser(ctx, "user-1", next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "a1", page[0].ID)
}

func TestApplyAutoMergeFlagsDuplicateOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a1", day.Add(7*time.Hour))
	seed(t, s, "a2", day.Add(7*time.Hour))

	request := domain.MergeRequest{ID: "m1", UserID: "user-1", PrimaryID: "a1", DuplicateID: "a2", Confidence: 100, Status: domain.MergeStatusAutoMerged}
	require.NoError(t, s.ApplyAutoMerge(ctx, request))
	require.ErrorIs(t, s.ApplyAutoMerge(ctx, request), domain.ErrNotFound)

	dup, _ := s.GetActivity(ctx, "user-1", "a2")
	require.True(t, dup.IsDuplicate)
	require.Equal(t, "a1", *dup.DuplicateOf)

	require.ErrorIs(t, s.CreateMergeRequest(ctx, domain.MergeRequest{ID: "m1b", UserID: "user-1", PrimaryID: "a2", DuplicateID: "a1", Status: domain.MergeStatusPending}), domain.ErrConflict)
	has, err := s.HasMergeRequest(ctx, "user-1", "a2", "a1")
	require.NoError(t, err)
	require.True(t, has)
	has, err = s.HasMergeRequest(ctx, "user-2", "a1", "a2")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.CreateMergeRequest(ctx, domain.MergeRequest{ID: "m2", UserID: "user-1", Status: domain.MergeStatusPending}))
	pending, err := s.ListMergeRequests(ctx, "user-1", domain.MergeStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "m2", pending[0].ID)
	all, _ := s.ListMergeRequests(ctx, "user-1", "")
	require.Len(t, all, 2)
}

func TestSleepUpsertAndBaseline(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first, err := s.UpsertSleepLog(ctx, domain.SleepLog{ID: "s1", UserID: "user-1", Date: day, Source: domain.SourceOura, AvgHRV: domain.Float(50)})
	require.NoError(t, err)
	second, err := s.UpsertSleepLog(ctx, domain.SleepLog{ID: "s2", UserID: "user-1", Date: day.Add(3 * time.Hour), Source: domain.SourceOura, AvgHRV: domain.Float(60)})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	_, err = s.UpsertSleepLog(ctx, domain.SleepLog{ID: "s3", UserID: "user-1", Date: day.AddDate(0, 0, -1), Source: domain.SourceOura, AvgHRV: domain.Float(40)})
	require.NoError(t, err)
	_, err = s.UpsertSleepLog(ctx, domain.SleepLog{ID: "s4", UserID: "user-1", Date: day.AddDate(0, 0, -9), Source: domain.SourceOura, AvgHRV: domain.Float(90)})
	require.NoError(t, err)

	logs, err := s.ListSleepLogs(ctx, "user-1", day, day)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, 60.0, *logs[0].AvgHRV)

	baseline, ok, err := s.HRVBaseline(ctx, "user-1", day)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 50.0, baseline)

	_, ok, err = s.HRVBaseline(ctx, "user-2", day)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDailyRecordsAndProfiles(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetReadiness(ctx, "user-1", day)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, s.UpsertReadiness(ctx, domain.Readiness{UserID: "user-1", Date: day.Add(5 * time.Hour), Score: 62}))
	require.NoError(t, s.UpsertReadiness(ctx, domain.Readiness{UserID: "user-1", Date: day, Score: 70}))
	readiness, err := s.GetReadiness(ctx, "user-1", day)
	require.NoError(t, err)
	require.Equal(t, 70, readiness.Score)

	require.NoError(t, s.UpsertTrainingLoad(ctx, domain.TrainingLoad{UserID: "user-1", Date: day, AcuteLoad: 9.57}))
	load, err := s.GetTrainingLoad(ctx, "user-1", day)
	require.NoError(t, err)
	require.Equal(t, 9.57, load.AcuteLoad)

	_, err = s.GetProfile(ctx, "user-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, s.UpsertProfile(ctx, domain.AthleteProfile{UserID: "user-1", MaxHR: domain.Float(190)}))
	profile, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 190.0, *profile.MaxHR)
}

func TestListActiveUsers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a1", day.AddDate(0, 0, -10))
	require.NoError(t, s.CreateActivity(ctx, domain.Activity{ID: "b1", UserID: "user-2", StartedAt: day, UpdatedAt: day}, ""))

	users, err := s.ListActiveUsers(ctx, day.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Equal(t, []string{"user-2"}, users)
}
