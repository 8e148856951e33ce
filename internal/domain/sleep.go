package domain

import "time"

// SleepQuality is the coarse category attached to a night of sleep.
type SleepQuality string

const (
	SleepQualityPoor      SleepQuality = "poor"
	SleepQualityFair      SleepQuality = "fair"
	SleepQualityGood      SleepQuality = "good"
	SleepQualityExcellent SleepQuality = "excellent"
)

// QualityForScore maps a 0-100 sleep score to its category.
func QualityForScore(score float64) SleepQuality {
	switch {
	case score >= 85:
		return SleepQualityExcellent
	case score >= 70:
		return SleepQualityGood
	case score >= 50:
		return SleepQualityFair
	default:
		return SleepQualityPoor
	}
}

// SleepLog is one night of sleep as reported by one source. Raw logs are
// unique per user, night and source.
type SleepLog struct {
	ID              string
	UserID          string
	Date            time.Time
	Source          Source
	StartedAt       *time.Time
	EndedAt         *time.Time
	TotalSleepMin   *float64
	DeepSleepMin    *float64
	LightSleepMin   *float64
	REMSleepMin     *float64
	AwakeMin        *float64
	SleepScore      *float64
	Quality         SleepQuality
	AvgHRV          *float64
	AvgHeartRate    *float64
	LowestHeartRate *float64
	AvgRespiration  *float64
	AvgSpO2         *float64
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy of the log.
func (s SleepLog) Clone() SleepLog {
	out := s
	for _, p := range []**float64{
		&out.TotalSleepMin, &out.DeepSleepMin, &out.LightSleepMin, &out.REMSleepMin, &out.AwakeMin,
		&out.SleepScore, &out.AvgHRV, &out.AvgHeartRate, &out.LowestHeartRate, &out.AvgRespiration, &out.AvgSpO2,
	} {
		*p = cloneFloat(*p)
	}
	out.Notes = cloneString(s.Notes)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}

// DateOf truncates t to the UTC calendar day it falls on.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
