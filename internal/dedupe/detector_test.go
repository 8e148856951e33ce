package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
)

var start = time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)

func run(id string, source domain.Source, offset time.Duration, mutate func(*domain.Activity)) domain.Activity {
	a := domain.Activity{
		ID:           id,
		UserID:       "user-1",
		Source:       source,
		StartedAt:    start.Add(offset),
		ActivityType: "running",
		DurationMin:  60,
		DistanceM:    domain.Float(10000),
	}
	if mutate != nil {
		mutate(&a)
	}
	return a
}

func TestDetectCrossSourcePairAutoMerges(t *testing.T) {
	d := NewDetector()
	garmin := run("g1", domain.SourceGarmin, 0, func(a *domain.Activity) { a.AvgHeartRate = domain.Float(150) })
	apple := run("a1", domain.SourceApple, 2*time.Minute, func(a *domain.Activity) {
		a.DistanceM = domain.Float(10050)
		a.AvgHeartRate = domain.Float(152)
	})

	match, ok := d.Detect(garmin, apple)
	require.True(t, ok)
	require.Equal(t, 100, match.Confidence)
	require.True(t, match.ShouldAutoMerge)
	require.Equal(t, "g1", match.PrimaryID)
	require.Equal(t, "a1", match.DuplicateID)
	require.Equal(t, "source_priority", match.Signals["primary_reason"])
	require.Equal(t, true, match.Signals["heart_rate_match"])
}

func TestDetectIsSymmetric(t *testing.T) {
	d := NewDetector()
	a := run("x1", domain.SourceWhoop, 0, nil)
	b := run("x2", domain.SourceOura, 4*time.Minute, func(a *domain.Activity) { a.DurationMin = 63 })

	ab, ok := d.Detect(a, b)
	require.True(t, ok)
	ba, ok := d.Detect(b, a)
	require.True(t, ok)
	require.Equal(t, ab.Confidence, ba.Confidence)
	require.Equal(t, ab.PrimaryID, ba.PrimaryID)
	require.Equal(t, ab.DuplicateID, ba.DuplicateID)
}

func TestDetectWindowBoundary(t *testing.T) {
	d := NewDetector()
	full := func(a *domain.Activity) { a.AvgHeartRate = domain.Float(150) }

	match, ok := d.Detect(run("a", domain.SourceGarmin, 0, full), run("b", domain.SourceApple, 30*time.Minute, full))
	require.True(t, ok)
	require.Equal(t, 100, match.Confidence)

	_, ok = d.Detect(run("a", domain.SourceGarmin, 0, full), run("b", domain.SourceApple, 31*time.Minute, full))
	require.False(t, ok)

	wide := NewDetector(WithWindow(time.Hour))
	_, ok = wide.Detect(run("a", domain.SourceGarmin, 0, full), run("b", domain.SourceApple, 31*time.Minute, full))
	require.True(t, ok)
}

func TestDetectCloserStartNeverLowersConfidence(t *testing.T) {
	d := NewDetector()
	base := run("a", domain.SourceGarmin, 0, nil)
	looser := func(a *domain.Activity) {
		a.DurationMin = 64
		a.DistanceM = domain.Float(10700)
	}

	previous := 0
	for _, gap := range []time.Duration{10 * time.Minute, 3 * time.Minute, 0} {
		match, ok := d.Detect(base, run("b", domain.SourceApple, gap, looser))
		require.True(t, ok, gap)
		require.GreaterOrEqual(t, match.Confidence, previous, gap)
		previous = match.Confidence
	}
	require.Equal(t, 100, previous)
}

func TestDetectExtraMatchingSignalNeverLowersConfidence(t *testing.T) {
	d := NewDetector()
	looser := func(a *domain.Activity) {
		a.DurationMin = 64
		a.DistanceM = domain.Float(10700)
	}

	without, ok := d.Detect(run("a", domain.SourceGarmin, 0, nil), run("b", domain.SourceApple, 10*time.Minute, looser))
	require.True(t, ok)

	withCalories, ok := d.Detect(
		run("a", domain.SourceGarmin, 0, func(a *domain.Activity) { a.Calories = domain.Float(700) }),
		run("b", domain.SourceApple, 10*time.Minute, func(a *domain.Activity) {
			looser(a)
			a.Calories = domain.Float(720)
		}),
	)
	require.True(t, ok)
	require.Equal(t, without.Confidence+10, withCalories.Confidence)
	require.Equal(t, true, withCalories.Signals["calories_match"])
}

func TestDetectBelowMinimumIsIgnored(t *testing.T) {
	d := NewDetector()
	_, ok := d.Detect(run("a", domain.SourceGarmin, 0, nil), run("b", domain.SourceApple, 10*time.Minute, func(a *domain.Activity) {
		a.ActivityType = "cycling"
	}))
	require.False(t, ok)
}

func TestDetectRejectsInvalidPairs(t *testing.T) {
	d := NewDetector()
	a := run("a", domain.SourceGarmin, 0, nil)

	_, ok := d.Detect(a, a)
	require.False(t, ok)

	_, ok = d.Detect(a, run("b", domain.SourceApple, 0, func(b *domain.Activity) { b.UserID = "user-2" }))
	require.False(t, ok)

	_, ok = d.Detect(a, run("b", domain.SourceApple, 0, func(b *domain.Activity) { b.IsDuplicate = true }))
	require.False(t, ok)
}

func TestAutoMergeThresholds(t *testing.T) {
	require.True(t, AutoMergeEligible(95, false))
	require.False(t, AutoMergeEligible(94, false))
	require.True(t, AutoMergeEligible(94, true))
	require.True(t, AutoMergeEligible(90, true))
	require.False(t, AutoMergeEligible(89, true))
}

func TestDetectSameSourceLowersAutoMergeBar(t *testing.T) {
	d := NewDetector()
	b := func(a *domain.Activity) { a.DistanceM = domain.Float(10100) }

	match, ok := d.Detect(run("a", domain.SourceApple, 0, nil), run("b", domain.SourceGarmin, 10*time.Minute, b))
	require.True(t, ok)
	require.Equal(t, 90, match.Confidence)
	require.False(t, match.ShouldAutoMerge)

	match, ok = d.Detect(run("a", domain.SourceGarmin, 0, nil), run("b", domain.SourceGarmin, 10*time.Minute, b))
	require.True(t, ok)
	require.Equal(t, 90, match.Confidence)
	require.True(t, match.ShouldAutoMerge)
	require.Equal(t, true, match.Signals["same_source"])
}

func TestChoosePrimary(t *testing.T) {
	d := NewDetector()

	match, ok := d.Detect(run("m", domain.SourceManual, 0, nil), run("g", domain.SourceGarmin, 0, nil))
	require.True(t, ok)
	require.Equal(t, "g", match.PrimaryID)

	richer := run("m", domain.SourceManual, 0, func(a *domain.Activity) { a.Calories = domain.Float(640) })
	match, ok = d.Detect(richer, run("g", domain.SourceGarmin, 0, nil))
	require.True(t, ok)
	require.Equal(t, "m", match.PrimaryID)
	require.Equal(t, "completeness", match.Signals["primary_reason"])

	early := run("g2", domain.SourceGarmin, 0, func(a *domain.Activity) { a.CreatedAt = start })
	late := run("g1", domain.SourceGarmin, 0, func(a *domain.Activity) { a.CreatedAt = start.Add(time.Hour) })
	match, ok = d.Detect(late, early)
	require.True(t, ok)
	require.Equal(t, "g2", match.PrimaryID)
	require.Equal(t, "created_at", match.Signals["primary_reason"])
}
