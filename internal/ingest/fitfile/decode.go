// Package fitfile turns Garmin FIT activity files into activity records.
package fitfile

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tormoder/fit"

	"example.com/healthsync/internal/domain"
)

// sportTypes maps normalised FIT sport names to activity types.
var sportTypes = map[string]string{
	"running":          "running",
	"cycling":          "cycling",
	"swimming":         "swimming",
	"walking":          "walking",
	"hiking":           "hiking",
	"rowing":           "rowing",
	"training":         "strength_training",
	"fitnessequipment": "strength_training",
}

// subSportTypes refine the sport when the device recorded a sub sport.
var subSportTypes = map[string]string{
	"treadmill":        "treadmill_running",
	"trail":            "trail_run",
	"indoorcycling":    "indoor_cycling",
	"strengthtraining": "strength_training",
	"yoga":             "yoga",
}

// Decode reads a FIT activity file and returns one garmin activity per
// session message. The records are not yet persisted.
func Decode(r io.Reader, userID string) ([]domain.Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("%w: activity FIT expected: %v", domain.ErrInvalidInput, err)
	}
	if len(activity.Sessions) == 0 {
		return nil, fmt.Errorf("%w: activity file has no session message", domain.ErrInvalidInput)
	}

	out := make([]domain.Activity, 0, len(activity.Sessions))
	for _, session := range activity.Sessions {
		start := validTimeOrZero(session.StartTime)
		if start.IsZero() {
			continue
		}
		record := domain.Activity{
			UserID:         userID,
			Source:         domain.SourceGarmin,
			StartedAt:      start.UTC(),
			ActivityType:   activityType(session.Sport, session.SubSport),
			DurationMin:    safePositive(session.GetTotalTimerTimeScaled()) / 60,
			DistanceM:      positivePtr(session.GetTotalDistanceScaled()),
			Calories:       positivePtr(float64(validUint16(session.TotalCalories))),
			AvgHeartRate:   positivePtr(float64(validUint8(session.AvgHeartRate))),
			MaxHeartRate:   positivePtr(float64(validUint8(session.MaxHeartRate))),
			ElevationGainM: positivePtr(float64(validUint16(session.TotalAscent))),
			ExternalID:     fmt.Sprintf("fit:%d", start.Unix()),
		}
		if record.DistanceM != nil && record.DurationMin > 0 && isRunLike(record.ActivityType) {
			record.AvgPace = pace(record.DurationMin, *record.DistanceM)
		}
		out = append(out, record)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no session carries a start time", domain.ErrInvalidInput)
	}
	return out, nil
}

// Creator persists a raw activity; *domain.Service satisfies it.
type Creator interface {
	CreateActivity(ctx context.Context, input domain.CreateActivityInput) (*domain.Activity, bool, error)
}

// Import decodes r and stores every session. The external id doubles as the
// idempotency key so importing the same file twice is a no-op.
func Import(ctx context.Context, creator Creator, userID string, r io.Reader, log zerolog.Logger) (domain.BatchSummary, []domain.Activity, error) {
	var summary domain.BatchSummary
	records, err := Decode(r, userID)
	if err != nil {
		return summary, nil, err
	}

	stored := make([]domain.Activity, 0, len(records))
	for _, record := range records {
		summary.Processed++
		created, replay, err := creator.CreateActivity(ctx, domain.CreateActivityInput{
			Activity:       record,
			IdempotencyKey: record.ExternalID,
		})
		if err != nil {
			summary.Fail(record.ExternalID, err)
			continue
		}
		summary.Succeeded++
		if replay {
			log.Debug().Str("external_id", record.ExternalID).Msg("session already imported")
			continue
		}
		stored = append(stored, *created)
	}
	return summary, stored, nil
}

func activityType(sport fit.Sport, subSport fit.SubSport) string {
	if t, ok := subSportTypes[normalize(fmt.Sprint(subSport), "subsport")]; ok {
		return t
	}
	if t, ok := sportTypes[normalize(fmt.Sprint(sport), "sport")]; ok {
		return t
	}
	return "other"
}

// normalize lowercases a generated enum name and drops its type prefix, so
// both "Running" and "SportRunning" become "running".
func normalize(name, prefix string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, prefix)
}

func isRunLike(activityType string) bool {
	switch activityType {
	case "running", "trail_run", "treadmill_running", "walking", "hiking":
		return true
	}
	return false
}

// pace renders minutes per kilometre as m:ss.
func pace(durationMin, distanceM float64) *string {
	if distanceM <= 0 {
		return nil
	}
	secondsPerKm := durationMin * 60 / (distanceM / 1000)
	d := time.Duration(math.Round(secondsPerKm)) * time.Second
	out := fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	return &out
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func validUint8(v uint8) uint8 {
	if v == math.MaxUint8 {
		return 0
	}
	return v
}

func validUint16(v uint16) uint16 {
	if v == math.MaxUint16 {
		return 0
	}
	return v
}

func safePositive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return v
}

func positivePtr(v float64) *float64 {
	v = safePositive(v)
	if v == 0 {
		return nil
	}
	return &v
}
