package domain

import "time"

// ReadinessStatus is one of five fixed readiness bands.
type ReadinessStatus string

const (
	ReadinessPoor     ReadinessStatus = "poor"
	ReadinessLow      ReadinessStatus = "low"
	ReadinessBalanced ReadinessStatus = "balanced"
	ReadinessHigh     ReadinessStatus = "high"
	ReadinessOptimal  ReadinessStatus = "optimal"
)

// CalculationMethod records which inputs produced a readiness score.
type CalculationMethod string

const (
	MethodManualFull     CalculationMethod = "manual_full"
	MethodManualPartial  CalculationMethod = "manual_partial"
	MethodAutoCalculated CalculationMethod = "auto_calculated"
)

// Readiness is the daily 0-100 readiness score for a user.
type Readiness struct {
	UserID              string
	Date                time.Time
	Score               int
	Status              ReadinessStatus
	ContributingFactors map[string]any
	Method              CalculationMethod
	UpdatedAt           time.Time
}

// TrainingLoad summarises acute and chronic load for one day.
type TrainingLoad struct {
	UserID          string
	Date            time.Time
	AcuteLoad       float64
	ChronicLoad     float64
	LoadRatio       *float64
	TrainingStatus  string
	RecoveryTimeHrs int
	UpdatedAt       time.Time
}

// AthleteProfile carries the optional physiological anchors used by the
// heart-rate TSS method.
type AthleteProfile struct {
	UserID      string
	RestingHR   *float64
	MaxHR       *float64
	ThresholdHR *float64
}
