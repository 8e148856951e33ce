package training

import "strings"

// defaultMultiplier applies to activity types missing from the catalog.
const defaultMultiplier = 0.7

// typeMultipliers scales RPE-based stress by how taxing an activity type is
// relative to running.
var typeMultipliers = map[string]float64{
	"running":           1.0,
	"trail_run":         1.1,
	"treadmill_running": 0.95,
	"cycling":           0.95,
	"indoor_cycling":    0.9,
	"swimming":          0.85,
	"rowing":            0.95,
	"hiit":              1.05,
	"hiking":            0.8,
	"walking":           0.5,
	"strength_training": 0.7,
	"yoga":              0.3,
}

// Multiplier returns the stress multiplier for an activity type.
func Multiplier(activityType string) float64 {
	key := strings.ToLower(strings.TrimSpace(activityType))
	key = strings.ReplaceAll(key, " ", "_")
	if m, ok := typeMultipliers[key]; ok {
		return m
	}
	return defaultMultiplier
}

// Intensity is a qualitative effort label used when neither heart rate nor
// perceived exertion is known.
type Intensity string

const (
	IntensityEasy     Intensity = "easy"
	IntensityModerate Intensity = "moderate"
	IntensityHard     Intensity = "hard"
	IntensityVeryHard Intensity = "very_hard"
)

var intensityRPE = map[Intensity]float64{
	IntensityEasy:     3,
	IntensityModerate: 5,
	IntensityHard:     7,
	IntensityVeryHard: 9,
}

// RPEFor maps an intensity label to perceived exertion. Unknown labels are
// treated as moderate.
func RPEFor(intensity Intensity) float64 {
	if rpe, ok := intensityRPE[Intensity(strings.ToLower(strings.TrimSpace(string(intensity))))]; ok {
		return rpe
	}
	return intensityRPE[IntensityModerate]
}
