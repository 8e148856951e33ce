package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/dedupe"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/persistence/memory"
)

func seedActivity(t *testing.T, store *memory.Store, userID string, source domain.Source, start time.Time, tss *int) domain.Activity {
	t.Helper()
	activity := domain.Activity{
		ID:           userID + "-" + string(source) + "-" + start.Format("150405"),
		UserID:       userID,
		Source:       source,
		StartedAt:    start,
		ActivityType: "running",
		DurationMin:  50,
		DistanceM:    domain.Float(10000),
		TSS:          tss,
		CreatedAt:    start,
		UpdatedAt:    start,
	}
	require.NoError(t, store.CreateActivity(context.Background(), activity, ""))
	return activity
}

func TestNightlyJobComputesLoadAndReadiness(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewServices(store, config.NewForTesting(), zerolog.Nop())
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	tss := 80
	seedActivity(t, store, "user-1", domain.SourceGarmin, day.Add(7*time.Hour), &tss)
	_, err := store.UpsertSleepLog(ctx, domain.SleepLog{
		ID:         "sleep-1",
		UserID:     "user-1",
		Date:       day,
		Source:     domain.SourceOura,
		SleepScore: domain.Float(90),
		UpdatedAt:  day.Add(8 * time.Hour),
	})
	require.NoError(t, err)

	job := NewNightlyJob(store, svc.Loads, svc.Readiness, zerolog.Nop())
	summary, err := job.RunFor(ctx, day)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Succeeded)
	require.Zero(t, summary.Failed)

	load, err := store.GetTrainingLoad(ctx, "user-1", day)
	require.NoError(t, err)
	require.Equal(t, "overreaching", load.TrainingStatus)

	readiness, err := store.GetReadiness(ctx, "user-1", day)
	require.NoError(t, err)
	require.Equal(t, domain.MethodAutoCalculated, readiness.Method)
	// 50 + (90-70)*0.5 sleep, -20 for an acute:chronic ratio above 1.5.
	require.Equal(t, 40, readiness.Score)
	require.Equal(t, domain.ReadinessLow, readiness.Status)
}

type failingLoads struct{}

func (failingLoads) Compute(context.Context, string, time.Time) (domain.TrainingLoad, error) {
	return domain.TrainingLoad{}, errors.New("db down")
}

func TestNightlyJobRecordsPerUserFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewServices(store, config.NewForTesting(), zerolog.Nop())
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	seedActivity(t, store, "user-1", domain.SourceGarmin, day.Add(6*time.Hour), nil)
	seedActivity(t, store, "user-2", domain.SourceGarmin, day.Add(6*time.Hour), nil)

	job := NewNightlyJob(store, failingLoads{}, svc.Readiness, zerolog.Nop())
	summary, err := job.RunFor(ctx, day)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Errors, 2)
	require.Contains(t, summary.Errors[0], "db down")
}

func TestScanJobMergesDuplicatesAcrossUsers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewServices(store, config.NewForTesting(), zerolog.Nop())
	now := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)

	seedActivity(t, store, "user-1", domain.SourceGarmin, now, nil)
	seedActivity(t, store, "user-1", domain.SourceApple, now.Add(time.Minute), nil)
	seedActivity(t, store, "user-2", domain.SourceGarmin, now, nil)

	job := NewScanJob(store, svc.Syncer, 2, zerolog.Nop())
	summary, err := job.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.AutoMerged)
	require.Zero(t, summary.Failed)

	merged, err := store.ListMergeRequests(ctx, "user-1", domain.MergeStatusAutoMerged)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	require.Equal(t, "user-1-garmin-"+now.Format("150405"), merged[0].PrimaryID)
}

type failingScanner struct{}

func (failingScanner) Scan(context.Context, string, int) (dedupe.ApplySummary, error) {
	return dedupe.ApplySummary{}, domain.ErrInvalidInput
}

func TestSchedulerRunNowAndRegistration(t *testing.T) {
	store := memory.NewStore()
	seedActivity(t, store, "user-1", domain.SourceGarmin, time.Now().UTC(), nil)

	s := New(zerolog.Nop())
	job := NewScanJob(store, failingScanner{}, 1, zerolog.Nop())
	require.NoError(t, s.AddJob("0 45 3 * * *", job))
	require.Error(t, s.AddJob("not a schedule", job))

	require.NoError(t, s.RunNow(context.Background(), job))

	summary, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
}
