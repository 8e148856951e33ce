package domain

import (
	"strings"
	"time"
)

// ActivityTypeStrength is the only activity type that carries an exercise list.
const ActivityTypeStrength = "strength_training"

// Exercise is one movement logged during a strength session.
type Exercise struct {
	Name     string   `json:"name"`
	Sets     int      `json:"sets,omitempty"`
	Reps     int      `json:"reps,omitempty"`
	WeightKg *float64 `json:"weight_kg,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// Activity is one logged exercise session as written by a single source.
type Activity struct {
	ID                string
	UserID            string
	Source            Source
	StartedAt         time.Time
	ActivityType      string
	DurationMin       float64
	DistanceM         *float64
	Calories          *float64
	AvgHeartRate      *float64
	MaxHeartRate      *float64
	AvgPace           *string
	ElevationGainM    *float64
	PerceivedExertion *float64
	Notes             *string
	Exercises         []Exercise
	IsDuplicate       bool
	DuplicateOf       *string
	TSS               *int
	ExternalID        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsStrength reports whether the activity is a strength-training session.
func (a Activity) IsStrength() bool {
	return strings.EqualFold(strings.TrimSpace(a.ActivityType), ActivityTypeStrength)
}

// Completeness counts populated optional fields over the fixed checklist used
// to pick the primary record of a duplicate pair.
func (a Activity) Completeness() int {
	count := 0
	if a.DurationMin > 0 {
		count++
	}
	for _, v := range []*float64{a.DistanceM, a.Calories, a.AvgHeartRate, a.MaxHeartRate, a.ElevationGainM} {
		if v != nil {
			count++
		}
	}
	if a.AvgPace != nil && *a.AvgPace != "" {
		count++
	}
	if a.Notes != nil && *a.Notes != "" {
		count++
	}
	return count
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a Activity) Clone() Activity {
	out := a
	out.DistanceM = cloneFloat(a.DistanceM)
	out.Calories = cloneFloat(a.Calories)
	out.AvgHeartRate = cloneFloat(a.AvgHeartRate)
	out.MaxHeartRate = cloneFloat(a.MaxHeartRate)
	out.ElevationGainM = cloneFloat(a.ElevationGainM)
	out.PerceivedExertion = cloneFloat(a.PerceivedExertion)
	out.AvgPace = cloneString(a.AvgPace)
	out.Notes = cloneString(a.Notes)
	out.DuplicateOf = cloneString(a.DuplicateOf)
	if a.TSS != nil {
		v := *a.TSS
		out.TSS = &v
	}
	if a.Exercises != nil {
		out.Exercises = append([]Exercise(nil), a.Exercises...)
	}
	return out
}

// ActivityQuery expresses the predicate for a ranged activity lookup. Both
// bounds are inclusive; results are ordered by start time.
type ActivityQuery struct {
	UserID            string
	From              time.Time
	To                time.Time
	ActivityType      string
	ExcludeID         string
	ExcludeDuplicates bool
}

// Cursor models the pagination token for activity listings.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
