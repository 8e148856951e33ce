//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/healthsync/db/migrations"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/events"
)

func setupStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("healthsync"),
		postgrescontainer.WithUsername("healthsync"),
		postgrescontainer.WithPassword("healthsync"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, migrations.Apply(ctx, pool))

	return NewStore(pool), pool
}

func newActivity(userID string, source domain.Source, startedAt time.Time) domain.Activity {
	now := time.Now().UTC()
	return domain.Activity{
		ID:           uuid.NewString(),
		UserID:       userID,
		Source:       source,
		StartedAt:    startedAt,
		ActivityType: "running",
		DurationMin:  45,
		DistanceM:    domain.Float(8000),
		AvgHeartRate: domain.Float(148),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStoreActivitiesAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store, pool := setupStore(t)

	userID := uuid.NewString()
	activity := newActivity(userID, domain.SourceGarmin, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.CreateActivity(ctx, activity, "key-1"))

	stored, err := store.GetActivity(ctx, userID, activity.ID)
	require.NoError(t, err)
	require.Equal(t, activity.ID, stored.ID)
	require.Equal(t, domain.SourceGarmin, stored.Source)
	require.InDelta(t, 8000, *stored.DistanceM, 0.001)

	_, err = store.GetActivity(ctx, uuid.NewString(), activity.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	replay, err := store.FindByIdempotency(ctx, userID, "key-1")
	require.NoError(t, err)
	require.Equal(t, activity.ID, replay.ID)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = $2`,
		activity.ID, events.TypeActivityIngested).Scan(&outboxCount))
	require.Equal(t, 1, outboxCount)
}

func TestStoreAutoMergeFlagsDuplicate(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	userID := uuid.NewString()
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	primary := newActivity(userID, domain.SourceGarmin, start)
	duplicate := newActivity(userID, domain.SourceApple, start.Add(2*time.Minute))
	require.NoError(t, store.CreateActivity(ctx, primary, ""))
	require.NoError(t, store.CreateActivity(ctx, duplicate, ""))

	now := time.Now().UTC()
	resolver := domain.ResolverAuto
	require.NoError(t, store.ApplyAutoMerge(ctx, domain.MergeRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		PrimaryID:   primary.ID,
		DuplicateID: duplicate.ID,
		Confidence:  100,
		Status:      domain.MergeStatusAutoMerged,
		Signals:     map[string]any{"same_source": false},
		ResolvedAt:  &now,
		ResolvedBy:  &resolver,
		CreatedAt:   now,
	}))

	flagged, err := store.GetActivity(ctx, userID, duplicate.ID)
	require.NoError(t, err)
	require.True(t, flagged.IsDuplicate)
	require.Equal(t, primary.ID, *flagged.DuplicateOf)

	visible, err := store.ListActivities(ctx, domain.ActivityQuery{UserID: userID, ExcludeDuplicates: true})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, primary.ID, visible[0].ID)

	requests, err := store.ListMergeRequests(ctx, userID, domain.MergeStatusAutoMerged)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, false, requests[0].Signals["same_source"])
}

func TestStoreMergeRequestIsUniquePerPair(t *testing.T) {
	ctx := context.Background()
	store, pool := setupStore(t)

	userID := uuid.NewString()
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	first := newActivity(userID, domain.SourceGarmin, start)
	second := newActivity(userID, domain.SourceApple, start.Add(10*time.Minute))
	require.NoError(t, store.CreateActivity(ctx, first, ""))
	require.NoError(t, store.CreateActivity(ctx, second, ""))

	has, err := store.HasMergeRequest(ctx, userID, first.ID, second.ID)
	require.NoError(t, err)
	require.False(t, has)

	request := domain.MergeRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		PrimaryID:   first.ID,
		DuplicateID: second.ID,
		Confidence:  90,
		Status:      domain.MergeStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateMergeRequest(ctx, request))

	has, err = store.HasMergeRequest(ctx, userID, second.ID, first.ID)
	require.NoError(t, err)
	require.True(t, has)

	reversed := request
	reversed.ID = uuid.NewString()
	reversed.PrimaryID, reversed.DuplicateID = second.ID, first.ID
	require.ErrorIs(t, store.CreateMergeRequest(ctx, reversed), domain.ErrConflict)

	var created int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE user_id = $1 AND event_type = $2`,
		userID, events.TypeMergeRequestCreated).Scan(&created))
	require.Equal(t, 1, created)
}

func TestStoreSleepUpsertIsUniquePerSource(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	userID := uuid.NewString()
	night := domain.DateOf(time.Now().UTC())
	base := domain.SleepLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		Date:       night,
		Source:     domain.SourceOura,
		SleepScore: domain.Float(70),
		AvgHRV:     domain.Float(50),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	_, err := store.UpsertSleepLog(ctx, base)
	require.NoError(t, err)

	again := base
	again.ID = uuid.NewString()
	again.SleepScore = domain.Float(82)
	stored, err := store.UpsertSleepLog(ctx, again)
	require.NoError(t, err)
	require.Equal(t, base.ID, stored.ID)

	logs, err := store.ListSleepLogs(ctx, userID, night, night)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.InDelta(t, 82, *logs[0].SleepScore, 0.001)

	baseline, ok, err := store.HRVBaseline(ctx, userID, night)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 50, baseline, 0.001)
}

func TestStoreReadinessUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	userID := uuid.NewString()
	day := domain.DateOf(time.Now().UTC())
	for _, score := range []int{40, 72} {
		require.NoError(t, store.UpsertReadiness(ctx, domain.Readiness{
			UserID:              userID,
			Date:                day,
			Score:               score,
			Status:              domain.ReadinessBalanced,
			ContributingFactors: map[string]any{"energy": 1.5},
			Method:              domain.MethodManualFull,
			UpdatedAt:           time.Now().UTC(),
		}))
	}

	record, err := store.GetReadiness(ctx, userID, day)
	require.NoError(t, err)
	require.Equal(t, 72, record.Score)

	_, err = store.GetTrainingLoad(ctx, userID, day)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
