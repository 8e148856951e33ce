// Package training estimates training stress per activity, rolls it up into
// acute and chronic load, and scores daily readiness.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
)

// Method names the estimation path that produced a TSS value.
type Method string

const (
	MethodHeartRate Method = "heart_rate"
	MethodRPE       Method = "rpe"
	MethodDefault   Method = "default"
)

const (
	DefaultRestingHR    = 60.0
	DefaultThresholdHR  = 170.0
	thresholdFromMaxHR  = 0.85
	minIntensityFactor  = 0.3
	maxIntensityFactor  = 1.5
	minRPE              = 1.0
	maxRPE              = 10.0
	DefaultRecalcWindow = 90
)

// Calculator estimates training stress scores.
type Calculator struct {
	restingHR   float64
	thresholdHR float64
	log         zerolog.Logger
}

// CalculatorOption customises a Calculator.
type CalculatorOption func(*Calculator)

// WithHeartRateDefaults overrides the resting and threshold heart rates used
// when the athlete profile has none.
func WithHeartRateDefaults(resting, threshold float64) CalculatorOption {
	return func(c *Calculator) {
		if resting > 0 {
			c.restingHR = resting
		}
		if threshold > 0 {
			c.thresholdHR = threshold
		}
	}
}

// WithCalculatorLogger sets the logger used for corrections and warnings.
func WithCalculatorLogger(log zerolog.Logger) CalculatorOption {
	return func(c *Calculator) {
		c.log = log.With().Str("component", "tss_calculator").Logger()
	}
}

// NewCalculator constructs a Calculator.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		restingHR:   DefaultRestingHR,
		thresholdHR: DefaultThresholdHR,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Estimate picks the best method the activity's data supports: heart rate,
// then perceived exertion, then a moderate-intensity default. A zero average
// heart rate counts as missing.
func (c *Calculator) Estimate(activity domain.Activity, profile *domain.AthleteProfile) (int, Method) {
	if positive(activity.AvgHeartRate) {
		resting, threshold := c.anchors(profile, activity.MaxHeartRate)
		return c.HeartRate(activity.DurationMin, *activity.AvgHeartRate, threshold, resting), MethodHeartRate
	}
	if activity.PerceivedExertion != nil {
		return c.RPE(activity.DurationMin, *activity.PerceivedExertion, activity.ActivityType), MethodRPE
	}
	return c.Default(activity.DurationMin, activity.ActivityType, IntensityModerate), MethodDefault
}

// HeartRate computes TSS from average heart rate relative to the athlete's
// resting and threshold rates. A degenerate range yields 0.
func (c *Calculator) HeartRate(durationMin, avgHR, thresholdHR, restingHR float64) int {
	if thresholdHR <= restingHR {
		c.log.Warn().
			Float64("threshold_hr", thresholdHR).
			Float64("resting_hr", restingHR).
			Msg("threshold heart rate not above resting heart rate")
		return 0
	}
	intensity := clamp((avgHR-restingHR)/(thresholdHR-restingHR), minIntensityFactor, maxIntensityFactor)
	return stress(durationMin, intensity, 1)
}

// RPE computes TSS from perceived exertion scaled by the activity type.
// Exertion outside 1..10 is clamped.
func (c *Calculator) RPE(durationMin, rpe float64, activityType string) int {
	if rpe < minRPE || rpe > maxRPE {
		corrected := clamp(rpe, minRPE, maxRPE)
		c.log.Debug().
			Float64("rpe", rpe).
			Float64("corrected", corrected).
			Msg("perceived exertion out of range, clamped")
		rpe = corrected
	}
	intensity := 0.5 + rpe/20
	return stress(durationMin, intensity, Multiplier(activityType))
}

// Default computes TSS from a qualitative intensity label.
func (c *Calculator) Default(durationMin float64, activityType string, intensity Intensity) int {
	return c.RPE(durationMin, RPEFor(intensity), activityType)
}

// anchors resolves resting and threshold heart rate. Threshold comes from the
// profile's threshold, then 85% of the profile's max, then 85% of the
// activity's own max, then the configured default.
func (c *Calculator) anchors(profile *domain.AthleteProfile, activityMaxHR *float64) (resting, threshold float64) {
	resting, threshold = c.restingHR, c.thresholdHR
	if profile == nil {
		profile = &domain.AthleteProfile{}
	}
	if positive(profile.RestingHR) {
		resting = *profile.RestingHR
	}
	switch {
	case positive(profile.ThresholdHR):
		threshold = *profile.ThresholdHR
	case positive(profile.MaxHR):
		threshold = *profile.MaxHR * thresholdFromMaxHR
	case positive(activityMaxHR):
		threshold = *activityMaxHR * thresholdFromMaxHR
	}
	return resting, threshold
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func stress(durationMin, intensity, multiplier float64) int {
	hours := durationMin / 60
	return int(math.Round(hours * intensity * intensity * multiplier * 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// TSSService stores estimated stress on activities.
type TSSService struct {
	activities domain.ActivityRepository
	profiles   domain.ProfileRepository
	calc       *Calculator
	log        zerolog.Logger
	now        func() time.Time
}

// NewTSSService constructs a TSSService.
func NewTSSService(activities domain.ActivityRepository, profiles domain.ProfileRepository, calc *Calculator, log zerolog.Logger) *TSSService {
	return &TSSService{
		activities: activities,
		profiles:   profiles,
		calc:       calc,
		log:        log.With().Str("component", "tss_service").Logger(),
		now:        time.Now,
	}
}

// CalculateAndStore estimates and persists TSS for one activity. A stored
// value is returned unchanged unless force is set.
func (s *TSSService) CalculateAndStore(ctx context.Context, userID, activityID string, force bool) (int, error) {
	activity, err := s.activities.GetActivity(ctx, userID, activityID)
	if err != nil {
		s.log.Warn().Err(err).Str("activity_id", activityID).Msg("tss calculation skipped")
		return 0, fmt.Errorf("get activity %s: %w", activityID, err)
	}
	if activity.TSS != nil && !force {
		return *activity.TSS, nil
	}
	if activity.DurationMin <= 0 {
		s.log.Warn().Str("activity_id", activityID).Msg("tss calculation skipped: no duration")
		return 0, fmt.Errorf("%w: activity %s has no duration", domain.ErrInvalidInput, activityID)
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("get profile: %w", err)
		}
		profile = nil
	}

	tss, method := s.calc.Estimate(*activity, profile)
	if err := s.activities.SetActivityTSS(ctx, userID, activityID, tss); err != nil {
		return 0, fmt.Errorf("store tss: %w", err)
	}
	observability.RecordTSS(string(method))
	s.log.Debug().
		Str("activity_id", activityID).
		Str("method", string(method)).
		Int("tss", tss).
		Msg("tss stored")
	return tss, nil
}

// RecalculateAll force-recomputes TSS for every non-duplicate activity of a
// user within the trailing window. Succeeded counts calculated activities.
func (s *TSSService) RecalculateAll(ctx context.Context, userID string, days int) domain.BatchSummary {
	if days <= 0 {
		days = DefaultRecalcWindow
	}
	var summary domain.BatchSummary
	now := s.now().UTC()
	activities, err := s.activities.ListActivities(ctx, domain.ActivityQuery{
		UserID:            userID,
		From:              now.AddDate(0, 0, -days),
		To:                now,
		ExcludeDuplicates: true,
	})
	if err != nil {
		summary.Fail("list", err)
		observability.RecordBatchError("tss_recalculate")
		return summary
	}

	for _, activity := range activities {
		summary.Processed++
		if _, err := s.CalculateAndStore(ctx, userID, activity.ID, true); err != nil {
			summary.Fail(activity.ID, err)
			observability.RecordBatchError("tss_recalculate")
			continue
		}
		summary.Succeeded++
	}

	s.log.Info().
		Str("user_id", userID).
		Int("processed", summary.Processed).
		Int("calculated", summary.Succeeded).
		Int("errors", summary.Failed).
		Msg("tss recalculation finished")
	return summary
}
