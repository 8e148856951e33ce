package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/reconcile"
)

const readinessBase = 50.0

var moodPoints = map[string]float64{
	"terrible": -15,
	"bad":      -7,
	"okay":     0,
	"good":     10,
	"amazing":  20,
}

// CheckIn is a subjective morning check-in.
type CheckIn struct {
	Date       time.Time `json:"date"`
	Energy     int       `json:"energy"`
	Soreness   int       `json:"soreness"`
	Stress     int       `json:"stress"`
	Mood       string    `json:"mood"`
	Motivation int       `json:"motivation"`
}

// Validate rejects check-ins outside the accepted scales.
func (c CheckIn) Validate() error {
	switch {
	case c.Energy < 1 || c.Energy > 10:
		return fmt.Errorf("%w: energy must be 1-10", domain.ErrInvalidInput)
	case c.Soreness < 0 || c.Soreness > 10:
		return fmt.Errorf("%w: soreness must be 0-10", domain.ErrInvalidInput)
	case c.Stress < 0 || c.Stress > 10:
		return fmt.Errorf("%w: stress must be 0-10", domain.ErrInvalidInput)
	case c.Motivation < 1 || c.Motivation > 10:
		return fmt.Errorf("%w: motivation must be 1-10", domain.ErrInvalidInput)
	}
	if _, ok := moodPoints[strings.ToLower(strings.TrimSpace(c.Mood))]; !ok {
		return fmt.Errorf("%w: unknown mood %q", domain.ErrInvalidInput, c.Mood)
	}
	return nil
}

// ManualScore scores a validated check-in and returns the factor breakdown.
func ManualScore(c CheckIn) (int, map[string]any) {
	energy := (float64(c.Energy) - 5.5) * 3
	soreness := -float64(c.Soreness) * 2
	stress := -float64(c.Stress) * 2
	mood := moodPoints[strings.ToLower(strings.TrimSpace(c.Mood))]
	motivation := (float64(c.Motivation) - 5) * 1.5

	factors := map[string]any{
		"energy":     energy,
		"soreness":   soreness,
		"stress":     stress,
		"mood":       mood,
		"motivation": motivation,
	}
	return truncateScore(readinessBase + energy + soreness + stress + mood + motivation), factors
}

// AutoInputs are the synced signals available for automatic scoring. Nil
// fields are omitted from the score.
type AutoInputs struct {
	SleepScore  *float64
	HRV         *float64
	HRVBaseline *float64
	LoadRatio   *float64
}

// AutoScore scores synced signals and returns the factor breakdown.
func AutoScore(in AutoInputs) (int, map[string]any) {
	score := readinessBase
	factors := map[string]any{}

	if in.SleepScore != nil {
		points := (*in.SleepScore - 70) * 0.5
		score += points
		factors["sleep"] = map[string]any{"score": *in.SleepScore, "points": points}
	}

	if in.HRV != nil && in.HRVBaseline != nil && *in.HRVBaseline > 0 {
		ratio := *in.HRV / *in.HRVBaseline
		status, points := hrvBucket(ratio)
		score += points
		factors["hrv"] = map[string]any{
			"value":    *in.HRV,
			"baseline": *in.HRVBaseline,
			"status":   status,
			"points":   points,
		}
	}

	if in.LoadRatio != nil {
		var points float64
		switch r := *in.LoadRatio; {
		case r >= 0.8 && r <= 1.3:
			points = 10
		case r > 1.5:
			points = -20
		}
		score += points
		factors["training_load"] = map[string]any{"ratio": *in.LoadRatio, "points": points}
	}

	return truncateScore(score), factors
}

func hrvBucket(ratio float64) (string, float64) {
	switch {
	case ratio >= 1.10:
		return "excellent", 20
	case ratio >= 0.95:
		return "balanced", 10
	case ratio >= 0.80:
		return "unbalanced", -10
	default:
		return "poor", -20
	}
}

// StatusForScore bands a readiness score.
func StatusForScore(score int) domain.ReadinessStatus {
	switch {
	case score >= 80:
		return domain.ReadinessOptimal
	case score >= 65:
		return domain.ReadinessHigh
	case score >= 50:
		return domain.ReadinessBalanced
	case score >= 35:
		return domain.ReadinessLow
	default:
		return domain.ReadinessPoor
	}
}

func truncateScore(v float64) int {
	return int(math.Trunc(clamp(v, 0, 100)))
}

// SleepSource returns the reconciled sleep view for a night.
type SleepSource interface {
	SleepForDate(ctx context.Context, userID string, date time.Time) (*reconcile.AggregatedSleep, error)
}

// ReadinessService computes and upserts daily readiness.
type ReadinessService struct {
	readiness domain.ReadinessRepository
	loads     domain.TrainingLoadRepository
	baselines domain.BaselineProvider
	sleep     SleepSource
	log       zerolog.Logger
	now       func() time.Time
}

// NewReadinessService constructs a ReadinessService.
func NewReadinessService(readiness domain.ReadinessRepository, loads domain.TrainingLoadRepository, baselines domain.BaselineProvider, sleep SleepSource, log zerolog.Logger) *ReadinessService {
	return &ReadinessService{
		readiness: readiness,
		loads:     loads,
		baselines: baselines,
		sleep:     sleep,
		log:       log.With().Str("component", "readiness").Logger(),
		now:       time.Now,
	}
}

// CheckIn scores a manual check-in. A reconciled sleep score for the same
// night is attached as an annotation only.
func (s *ReadinessService) CheckIn(ctx context.Context, userID string, in CheckIn) (domain.Readiness, error) {
	if err := in.Validate(); err != nil {
		return domain.Readiness{}, err
	}
	day := domain.DateOf(in.Date)
	score, factors := ManualScore(in)
	method := domain.MethodManualFull

	sleepScore, err := s.sleepScore(ctx, userID, day)
	if err != nil {
		return domain.Readiness{}, err
	}
	if sleepScore != nil {
		factors["sleep_score"] = *sleepScore
		method = domain.MethodManualPartial
	}

	return s.store(ctx, domain.Readiness{
		UserID:              userID,
		Date:                day,
		Score:               score,
		ContributingFactors: factors,
		Method:              method,
	})
}

// Auto scores a day from synced sleep, HRV and training load.
func (s *ReadinessService) Auto(ctx context.Context, userID string, date time.Time) (domain.Readiness, error) {
	day := domain.DateOf(date)
	var in AutoInputs

	agg, err := s.sleep.SleepForDate(ctx, userID, day)
	switch {
	case err == nil:
		in.SleepScore = agg.Record.SleepScore
		in.HRV = agg.Record.AvgHRV
	case !errors.Is(err, domain.ErrNoData):
		return domain.Readiness{}, fmt.Errorf("sleep for %s: %w", day.Format(time.DateOnly), err)
	}

	if in.HRV != nil {
		baseline, ok, err := s.baselines.HRVBaseline(ctx, userID, day.AddDate(0, 0, -1))
		if err != nil {
			return domain.Readiness{}, fmt.Errorf("hrv baseline: %w", err)
		}
		if ok {
			in.HRVBaseline = &baseline
		}
	}

	load, err := s.loads.GetTrainingLoad(ctx, userID, day)
	switch {
	case err == nil:
		in.LoadRatio = load.LoadRatio
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Readiness{}, fmt.Errorf("training load: %w", err)
	}

	score, factors := AutoScore(in)
	return s.store(ctx, domain.Readiness{
		UserID:              userID,
		Date:                day,
		Score:               score,
		ContributingFactors: factors,
		Method:              domain.MethodAutoCalculated,
	})
}

// Get returns the stored readiness for a day.
func (s *ReadinessService) Get(ctx context.Context, userID string, date time.Time) (*domain.Readiness, error) {
	return s.readiness.GetReadiness(ctx, userID, domain.DateOf(date))
}

func (s *ReadinessService) sleepScore(ctx context.Context, userID string, day time.Time) (*float64, error) {
	agg, err := s.sleep.SleepForDate(ctx, userID, day)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("sleep for %s: %w", day.Format(time.DateOnly), err)
	}
	return agg.Record.SleepScore, nil
}

func (s *ReadinessService) store(ctx context.Context, record domain.Readiness) (domain.Readiness, error) {
	record.Status = StatusForScore(record.Score)
	record.UpdatedAt = s.now().UTC()
	if err := s.readiness.UpsertReadiness(ctx, record); err != nil {
		return domain.Readiness{}, fmt.Errorf("store readiness: %w", err)
	}
	observability.RecordReadiness(string(record.Method), string(record.Status))
	s.log.Debug().
		Str("user_id", record.UserID).
		Time("date", record.Date).
		Int("score", record.Score).
		Str("method", string(record.Method)).
		Msg("readiness stored")
	return record, nil
}
