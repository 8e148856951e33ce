package api

import (
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/pipeline"
	"example.com/healthsync/internal/reconcile"
)

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Source            string            `json:"source"`
	ExternalID        string            `json:"external_id,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	ActivityType      string            `json:"activity_type"`
	DurationMin       float64           `json:"duration_min"`
	DistanceM         *float64          `json:"distance_m,omitempty"`
	Calories          *float64          `json:"calories,omitempty"`
	AvgHeartRate      *float64          `json:"avg_heart_rate,omitempty"`
	MaxHeartRate      *float64          `json:"max_heart_rate,omitempty"`
	AvgPace           *string           `json:"avg_pace,omitempty"`
	ElevationGainM    *float64          `json:"elevation_gain_m,omitempty"`
	PerceivedExertion *float64          `json:"perceived_exertion,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	Exercises         []domain.Exercise `json:"exercises,omitempty"`
}

func (r CreateActivityRequest) toDomain(userID string) domain.Activity {
	return domain.Activity{
		UserID:            userID,
		Source:            domain.ParseSource(r.Source),
		ExternalID:        r.ExternalID,
		StartedAt:         r.StartedAt,
		ActivityType:      r.ActivityType,
		DurationMin:       r.DurationMin,
		DistanceM:         r.DistanceM,
		Calories:          r.Calories,
		AvgHeartRate:      r.AvgHeartRate,
		MaxHeartRate:      r.MaxHeartRate,
		AvgPace:           r.AvgPace,
		ElevationGainM:    r.ElevationGainM,
		PerceivedExertion: r.PerceivedExertion,
		Notes:             r.Notes,
		Exercises:         r.Exercises,
	}
}

// CreateActivityResponse describes the response body for create.
type CreateActivityResponse struct {
	Activity ActivityView     `json:"activity"`
	Replay   bool             `json:"idempotent_replay"`
	Sync     *pipeline.Result `json:"sync,omitempty"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID        string            `json:"activity_id"`
	UserID            string            `json:"user_id"`
	Source            string            `json:"source"`
	ExternalID        string            `json:"external_id,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	ActivityType      string            `json:"activity_type"`
	DurationMin       float64           `json:"duration_min"`
	DistanceM         *float64          `json:"distance_m,omitempty"`
	Calories          *float64          `json:"calories,omitempty"`
	AvgHeartRate      *float64          `json:"avg_heart_rate,omitempty"`
	MaxHeartRate      *float64          `json:"max_heart_rate,omitempty"`
	AvgPace           *string           `json:"avg_pace,omitempty"`
	ElevationGainM    *float64          `json:"elevation_gain_m,omitempty"`
	PerceivedExertion *float64          `json:"perceived_exertion,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	Exercises         []domain.Exercise `json:"exercises,omitempty"`
	IsDuplicate       bool              `json:"is_duplicate"`
	DuplicateOf       *string           `json:"duplicate_of,omitempty"`
	TSS               *int              `json:"tss,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:        a.ID,
		UserID:            a.UserID,
		Source:            string(a.Source),
		ExternalID:        a.ExternalID,
		StartedAt:         a.StartedAt,
		ActivityType:      a.ActivityType,
		DurationMin:       a.DurationMin,
		DistanceM:         a.DistanceM,
		Calories:          a.Calories,
		AvgHeartRate:      a.AvgHeartRate,
		MaxHeartRate:      a.MaxHeartRate,
		AvgPace:           a.AvgPace,
		ElevationGainM:    a.ElevationGainM,
		PerceivedExertion: a.PerceivedExertion,
		Notes:             a.Notes,
		Exercises:         a.Exercises,
		IsDuplicate:       a.IsDuplicate,
		DuplicateOf:       a.DuplicateOf,
		TSS:               a.TSS,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// AggregatedActivityResponse is the reconciled view of one activity slot.
type AggregatedActivityResponse struct {
	Activity          ActivityView `json:"activity"`
	PrimarySource     string       `json:"primary_source"`
	Sources           []string     `json:"sources"`
	ConflictsResolved int          `json:"conflicts_resolved"`
	Notes             []string     `json:"notes"`
}

func toAggregatedActivity(agg reconcile.AggregatedActivity) AggregatedActivityResponse {
	return AggregatedActivityResponse{
		Activity:          toActivityView(agg.Record),
		PrimarySource:     string(agg.PrimarySource),
		Sources:           sourceNames(agg.Sources),
		ConflictsResolved: agg.ConflictsResolved,
		Notes:             nonNil(agg.Notes),
	}
}

// DuplicateMatchView is one candidate pair.
type DuplicateMatchView struct {
	PrimaryID       string         `json:"primary_id"`
	DuplicateID     string         `json:"duplicate_id"`
	Confidence      int            `json:"confidence"`
	Signals         map[string]any `json:"signals"`
	ShouldAutoMerge bool           `json:"should_auto_merge"`
}

// DuplicatesResponse lists candidate pairs for one activity.
type DuplicatesResponse struct {
	ActivityID string               `json:"activity_id"`
	Matches    []DuplicateMatchView `json:"matches"`
}

func toMatchViews(matches []domain.DuplicateMatch) []DuplicateMatchView {
	out := make([]DuplicateMatchView, 0, len(matches))
	for _, m := range matches {
		out = append(out, DuplicateMatchView{
			PrimaryID:       m.PrimaryID,
			DuplicateID:     m.DuplicateID,
			Confidence:      m.Confidence,
			Signals:         m.Signals,
			ShouldAutoMerge: m.ShouldAutoMerge,
		})
	}
	return out
}

// MergeRequestView exposes a persisted merge decision.
type MergeRequestView struct {
	ID          string         `json:"id"`
	PrimaryID   string         `json:"primary_id"`
	DuplicateID string         `json:"duplicate_id"`
	Confidence  int            `json:"confidence"`
	Status      string         `json:"status"`
	Signals     map[string]any `json:"signals"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy  *string        `json:"resolved_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toMergeRequestView(m domain.MergeRequest) MergeRequestView {
	return MergeRequestView{
		ID:          m.ID,
		PrimaryID:   m.PrimaryID,
		DuplicateID: m.DuplicateID,
		Confidence:  m.Confidence,
		Status:      string(m.Status),
		Signals:     m.Signals,
		ResolvedAt:  m.ResolvedAt,
		ResolvedBy:  m.ResolvedBy,
		CreatedAt:   m.CreatedAt,
	}
}

// SleepLogRequest is the payload for PUT /v1/sleep.
type SleepLogRequest struct {
	Date            string     `json:"date"`
	Source          string     `json:"source"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	TotalSleepMin   *float64   `json:"total_sleep_min,omitempty"`
	DeepSleepMin    *float64   `json:"deep_sleep_min,omitempty"`
	LightSleepMin   *float64   `json:"light_sleep_min,omitempty"`
	REMSleepMin     *float64   `json:"rem_sleep_min,omitempty"`
	AwakeMin        *float64   `json:"awake_min,omitempty"`
	SleepScore      *float64   `json:"sleep_score,omitempty"`
	Quality         string     `json:"quality,omitempty"`
	AvgHRV          *float64   `json:"avg_hrv,omitempty"`
	AvgHeartRate    *float64   `json:"avg_heart_rate,omitempty"`
	LowestHeartRate *float64   `json:"lowest_heart_rate,omitempty"`
	AvgRespiration  *float64   `json:"avg_respiration,omitempty"`
	AvgSpO2         *float64   `json:"avg_spo2,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// SleepView exposes one night of sleep.
type SleepView struct {
	ID              string     `json:"id,omitempty"`
	Date            string     `json:"date"`
	Source          string     `json:"source"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	TotalSleepMin   *float64   `json:"total_sleep_min,omitempty"`
	DeepSleepMin    *float64   `json:"deep_sleep_min,omitempty"`
	LightSleepMin   *float64   `json:"light_sleep_min,omitempty"`
	REMSleepMin     *float64   `json:"rem_sleep_min,omitempty"`
	AwakeMin        *float64   `json:"awake_min,omitempty"`
	SleepScore      *float64   `json:"sleep_score,omitempty"`
	Quality         string     `json:"quality,omitempty"`
	AvgHRV          *float64   `json:"avg_hrv,omitempty"`
	AvgHeartRate    *float64   `json:"avg_heart_rate,omitempty"`
	LowestHeartRate *float64   `json:"lowest_heart_rate,omitempty"`
	AvgRespiration  *float64   `json:"avg_respiration,omitempty"`
	AvgSpO2         *float64   `json:"avg_spo2,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

func toSleepView(s domain.SleepLog) SleepView {
	return SleepView{
		ID:              s.ID,
		Date:            s.Date.Format(dateLayout),
		Source:          string(s.Source),
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		TotalSleepMin:   s.TotalSleepMin,
		DeepSleepMin:    s.DeepSleepMin,
		LightSleepMin:   s.LightSleepMin,
		REMSleepMin:     s.REMSleepMin,
		AwakeMin:        s.AwakeMin,
		SleepScore:      s.SleepScore,
		Quality:         string(s.Quality),
		AvgHRV:          s.AvgHRV,
		AvgHeartRate:    s.AvgHeartRate,
		LowestHeartRate: s.LowestHeartRate,
		AvgRespiration:  s.AvgRespiration,
		AvgSpO2:         s.AvgSpO2,
		Notes:           s.Notes,
	}
}

// AggregatedSleepResponse is the reconciled view of one night.
type AggregatedSleepResponse struct {
	Sleep             SleepView `json:"sleep"`
	PrimarySource     string    `json:"primary_source"`
	Sources           []string  `json:"sources"`
	ConflictsResolved int       `json:"conflicts_resolved"`
	Notes             []string  `json:"notes"`
}

func toAggregatedSleep(agg reconcile.AggregatedSleep) AggregatedSleepResponse {
	view := toSleepView(agg.Record)
	view.ID = ""
	return AggregatedSleepResponse{
		Sleep:             view,
		PrimarySource:     string(agg.PrimarySource),
		Sources:           sourceNames(agg.Sources),
		ConflictsResolved: agg.ConflictsResolved,
		Notes:             nonNil(agg.Notes),
	}
}

// ReadinessView exposes a daily readiness record.
type ReadinessView struct {
	Date                string         `json:"date"`
	Score               int            `json:"score"`
	Status              string         `json:"status"`
	Method              string         `json:"method"`
	ContributingFactors map[string]any `json:"contributing_factors"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func toReadinessView(r domain.Readiness) ReadinessView {
	return ReadinessView{
		Date:                r.Date.Format(dateLayout),
		Score:               r.Score,
		Status:              string(r.Status),
		Method:              string(r.Method),
		ContributingFactors: r.ContributingFactors,
		UpdatedAt:           r.UpdatedAt,
	}
}

// CheckInRequest is the payload for POST /v1/readiness/check-in.
type CheckInRequest struct {
	Date       string `json:"date,omitempty"`
	Energy     int    `json:"energy"`
	Soreness   int    `json:"soreness"`
	Stress     int    `json:"stress"`
	Mood       string `json:"mood"`
	Motivation int    `json:"motivation"`
}

// TrainingLoadView exposes a daily training-load record.
type TrainingLoadView struct {
	Date            string    `json:"date"`
	AcuteLoad       float64   `json:"acute_load"`
	ChronicLoad     float64   `json:"chronic_load"`
	LoadRatio       *float64  `json:"load_ratio"`
	TrainingStatus  string    `json:"training_status"`
	RecoveryTimeHrs int       `json:"recovery_time_hrs"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toTrainingLoadView(l domain.TrainingLoad) TrainingLoadView {
	return TrainingLoadView{
		Date:            l.Date.Format(dateLayout),
		AcuteLoad:       l.AcuteLoad,
		ChronicLoad:     l.ChronicLoad,
		LoadRatio:       l.LoadRatio,
		TrainingStatus:  l.TrainingStatus,
		RecoveryTimeHrs: l.RecoveryTimeHrs,
		UpdatedAt:       l.UpdatedAt,
	}
}

// ProfileView carries the optional heart-rate anchors of an athlete.
type ProfileView struct {
	RestingHR   *float64 `json:"resting_hr,omitempty"`
	MaxHR       *float64 `json:"max_hr,omitempty"`
	ThresholdHR *float64 `json:"threshold_hr,omitempty"`
}

// TSSResponse reports the stored TSS of one activity.
type TSSResponse struct {
	ActivityID string `json:"activity_id"`
	TSS        int    `json:"tss"`
}

func sourceNames(sources []domain.Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, string(s))
	}
	return out
}

func nonNil(notes []string) []string {
	if notes == nil {
		return []string{}
	}
	return notes
}
