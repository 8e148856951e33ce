package training

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/persistence/memory"
)

func TestHeartRateStress(t *testing.T) {
	c := NewCalculator()

	require.Equal(t, 67, c.HeartRate(60, 150, 170, 60))
	require.Equal(t, 225, c.HeartRate(60, 250, 170, 60))
	require.Equal(t, 9, c.HeartRate(60, 40, 170, 60))
	require.Zero(t, c.HeartRate(60, 150, 60, 60))
}

func TestRPEStress(t *testing.T) {
	c := NewCalculator()

	require.Equal(t, 54, c.RPE(45, 7, "running"))
	require.Equal(t, 64, c.RPE(60, 6, "running"))
	require.Equal(t, 100, c.RPE(60, 12, "running"))
	require.Equal(t, 30, c.RPE(60, 0, "Running"))
	require.Equal(t, 70, c.RPE(60, 6, "Trail Run"))
}

func TestDefaultStress(t *testing.T) {
	c := NewCalculator()

	require.Equal(t, 17, c.Default(60, "yoga", IntensityModerate))
	require.Equal(t, 39, c.Default(60, "pilates", "unknown"))
	require.Equal(t, 72, c.Default(60, "running", IntensityHard))
}

func TestEstimatePicksBestMethod(t *testing.T) {
	c := NewCalculator()
	activity := domain.Activity{ActivityType: "running", DurationMin: 60, AvgHeartRate: domain.Float(150), PerceivedExertion: domain.Float(6)}

	tss, method := c.Estimate(activity, nil)
	require.Equal(t, MethodHeartRate, method)
	require.Equal(t, 67, tss)

	tss, _ = c.Estimate(activity, &domain.AthleteProfile{MaxHR: domain.Float(200)})
	require.Equal(t, 67, tss)

	tss, _ = c.Estimate(activity, &domain.AthleteProfile{RestingHR: domain.Float(50), ThresholdHR: domain.Float(160), MaxHR: domain.Float(200)})
	require.Equal(t, 83, tss)

	activity.AvgHeartRate = nil
	tss, method = c.Estimate(activity, nil)
	require.Equal(t, MethodRPE, method)
	require.Equal(t, 64, tss)

	activity.PerceivedExertion = nil
	tss, method = c.Estimate(activity, nil)
	require.Equal(t, MethodDefault, method)
	require.Equal(t, 56, tss)

	custom := NewCalculator(WithHeartRateDefaults(50, 160))
	tss, _ = custom.Estimate(domain.Activity{DurationMin: 60, AvgHeartRate: domain.Float(150)}, nil)
	require.Equal(t, 83, tss)
}

func TestEstimateThresholdFromActivityMaxHR(t *testing.T) {
	c := NewCalculator()
	activity := domain.Activity{ActivityType: "running", DurationMin: 60, AvgHeartRate: domain.Float(150), MaxHeartRate: domain.Float(180)}

	tss, method := c.Estimate(activity, nil)
	require.Equal(t, MethodHeartRate, method)
	require.Equal(t, 94, tss)

	tss, _ = c.Estimate(activity, &domain.AthleteProfile{RestingHR: domain.Float(70)})
	require.Equal(t, 93, tss)

	tss, _ = c.Estimate(activity, &domain.AthleteProfile{MaxHR: domain.Float(200)})
	require.Equal(t, 67, tss)

	tss, _ = c.Estimate(activity, &domain.AthleteProfile{RestingHR: domain.Float(50), ThresholdHR: domain.Float(160)})
	require.Equal(t, 83, tss)

	activity.MaxHeartRate = domain.Float(0)
	tss, _ = c.Estimate(activity, nil)
	require.Equal(t, 67, tss)
}

func TestEstimateTreatsZeroHeartRateAsMissing(t *testing.T) {
	c := NewCalculator()
	activity := domain.Activity{ActivityType: "running", DurationMin: 60, AvgHeartRate: domain.Float(0), PerceivedExertion: domain.Float(6)}

	tss, method := c.Estimate(activity, nil)
	require.Equal(t, MethodRPE, method)
	require.Equal(t, 64, tss)

	activity.PerceivedExertion = nil
	tss, method = c.Estimate(activity, nil)
	require.Equal(t, MethodDefault, method)
	require.Equal(t, 56, tss)
}

func TestTSSServiceStoresOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewTSSService(store, store, NewCalculator(), zerolog.Nop())
	started := time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(time.Hour) }

	require.NoError(t, store.CreateActivity(ctx, domain.Activity{ID: "a1", UserID: "user-1", StartedAt: started, ActivityType: "running", DurationMin: 60, AvgHeartRate: domain.Float(150)}, ""))
	require.NoError(t, store.CreateActivity(ctx, domain.Activity{ID: "a2", UserID: "user-1", StartedAt: started, ActivityType: "running"}, ""))

	tss, err := svc.CalculateAndStore(ctx, "user-1", "a1", false)
	require.NoError(t, err)
	require.Equal(t, 67, tss)

	require.NoError(t, store.UpsertProfile(ctx, domain.AthleteProfile{UserID: "user-1", RestingHR: domain.Float(50), ThresholdHR: domain.Float(160)}))
	tss, err = svc.CalculateAndStore(ctx, "user-1", "a1", false)
	require.NoError(t, err)
	require.Equal(t, 67, tss)

	tss, err = svc.CalculateAndStore(ctx, "user-1", "a1", true)
	require.NoError(t, err)
	require.Equal(t, 83, tss)

	_, err = svc.CalculateAndStore(ctx, "user-1", "a2", false)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CalculateAndStore(ctx, "user-2", "a1", false)
	require.ErrorIs(t, err, domain.ErrNotFound)

	summary := svc.RecalculateAll(ctx, "user-1", 0)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
}
