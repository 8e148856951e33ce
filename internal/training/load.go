package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"example.com/healthsync/internal/domain"
)

const (
	acuteDays   = 7
	chronicDays = 28
)

// Training status tags derived from the acute:chronic ratio.
const (
	StatusDetraining   = "detraining"
	StatusOptimal      = "optimal"
	StatusHigh         = "high"
	StatusOverreaching = "overreaching"
)

// LoadService rolls stored activity TSS into acute and chronic load.
type LoadService struct {
	activities domain.ActivityRepository
	loads      domain.TrainingLoadRepository
	log        zerolog.Logger
	now        func() time.Time
}

// NewLoadService constructs a LoadService.
func NewLoadService(activities domain.ActivityRepository, loads domain.TrainingLoadRepository, log zerolog.Logger) *LoadService {
	return &LoadService{
		activities: activities,
		loads:      loads,
		log:        log.With().Str("component", "training_load").Logger(),
		now:        time.Now,
	}
}

// Compute derives and upserts the training load for the day containing date.
func (s *LoadService) Compute(ctx context.Context, userID string, date time.Time) (domain.TrainingLoad, error) {
	day := domain.DateOf(date)
	first := day.AddDate(0, 0, -(chronicDays - 1))
	activities, err := s.activities.ListActivities(ctx, domain.ActivityQuery{
		UserID:            userID,
		From:              first,
		To:                day.Add(24*time.Hour - time.Nanosecond),
		ExcludeDuplicates: true,
	})
	if err != nil {
		return domain.TrainingLoad{}, fmt.Errorf("list activities: %w", err)
	}

	daily := DailyTSS(activities, first, chronicDays)
	load := LoadFromDaily(daily)
	load.UserID = userID
	load.Date = day
	load.UpdatedAt = s.now().UTC()

	if err := s.loads.UpsertTrainingLoad(ctx, load); err != nil {
		return domain.TrainingLoad{}, fmt.Errorf("store training load: %w", err)
	}
	s.log.Debug().
		Str("user_id", userID).
		Time("date", day).
		Float64("acute", load.AcuteLoad).
		Float64("chronic", load.ChronicLoad).
		Str("status", load.TrainingStatus).
		Msg("training load computed")
	return load, nil
}

// Get returns the stored training load for a day.
func (s *LoadService) Get(ctx context.Context, userID string, date time.Time) (*domain.TrainingLoad, error) {
	return s.loads.GetTrainingLoad(ctx, userID, domain.DateOf(date))
}

// DailyTSS buckets stored TSS into days consecutive days starting at first.
// Activities without a stored TSS contribute nothing.
func DailyTSS(activities []domain.Activity, first time.Time, days int) []float64 {
	daily := make([]float64, days)
	for _, activity := range activities {
		if activity.TSS == nil || activity.IsDuplicate {
			continue
		}
		idx := int(domain.DateOf(activity.StartedAt).Sub(first) / (24 * time.Hour))
		if idx < 0 || idx >= days {
			continue
		}
		daily[idx] += float64(*activity.TSS)
	}
	return daily
}

// LoadFromDaily computes load from daily totals ordered oldest first; the last
// element is the day being scored.
func LoadFromDaily(daily []float64) domain.TrainingLoad {
	var load domain.TrainingLoad
	if len(daily) == 0 {
		load.TrainingStatus = StatusDetraining
		return load
	}
	acuteStart := len(daily) - acuteDays
	if acuteStart < 0 {
		acuteStart = 0
	}
	load.AcuteLoad = round2(stat.Mean(daily[acuteStart:], nil))
	load.ChronicLoad = round2(stat.Mean(daily, nil))
	if load.ChronicLoad > 0 {
		ratio := round2(load.AcuteLoad / load.ChronicLoad)
		load.LoadRatio = &ratio
	}
	load.TrainingStatus = StatusForRatio(load.LoadRatio)
	load.RecoveryTimeHrs = RecoveryHours(daily[len(daily)-1])
	return load
}

// StatusForRatio tags an acute:chronic ratio. No ratio means no chronic base.
func StatusForRatio(ratio *float64) string {
	switch {
	case ratio == nil || *ratio < 0.8:
		return StatusDetraining
	case *ratio <= 1.3:
		return StatusOptimal
	case *ratio <= 1.5:
		return StatusHigh
	default:
		return StatusOverreaching
	}
}

// RecoveryHours estimates recovery time from one day's stress.
func RecoveryHours(tss float64) int {
	switch {
	case tss < 50:
		return 12
	case tss < 100:
		return 24
	case tss < 150:
		return 36
	case tss < 250:
		return 48
	default:
		return 72
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
