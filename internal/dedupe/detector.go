// Package dedupe detects activities recorded twice and decides how to merge them.
package dedupe

import (
	"math"
	"strings"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/reconcile"
)

const (
	// DefaultWindow is the maximum start-time distance for two activities to be compared.
	DefaultWindow = 30 * time.Minute
	// MinConfidence is the lowest confidence worth acting on.
	MinConfidence = 80
	// AutoMergeConfidence always qualifies for an automatic merge.
	AutoMergeConfidence = 95
	// SameSourceAutoMergeConfidence qualifies for an automatic merge when both
	// records come from the same source.
	SameSourceAutoMergeConfidence = 90
)

const (
	relativeTolerancePct  = 10.0
	tightTolerancePct     = 5.0
	heartRateToleranceBPM = 10.0
	closeStartWindow      = 5 * time.Minute
)

// Detector scores how likely two activities describe the same session.
type Detector struct {
	window time.Duration
}

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithWindow overrides the comparison window.
func WithWindow(window time.Duration) DetectorOption {
	return func(d *Detector) {
		if window > 0 {
			d.window = window
		}
	}
}

// NewDetector constructs a Detector.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{window: DefaultWindow}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the comparison window.
func (d *Detector) Window() time.Duration {
	return d.window
}

// Detect compares a and b. The boolean is false when the pair is not a
// duplicate worth acting on.
func (d *Detector) Detect(a, b domain.Activity) (domain.DuplicateMatch, bool) {
	if a.UserID != b.UserID || a.ID == b.ID {
		return domain.DuplicateMatch{}, false
	}
	if a.IsDuplicate || b.IsDuplicate {
		return domain.DuplicateMatch{}, false
	}

	timeDiff := a.StartedAt.Sub(b.StartedAt)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff > d.window {
		return domain.DuplicateMatch{}, false
	}

	confidence, signals := score(a, b, timeDiff)
	if confidence < MinConfidence {
		return domain.DuplicateMatch{}, false
	}

	primary, duplicate, reason := choosePrimary(a, b)
	signals["primary_reason"] = reason
	sameSource := domain.ParseSource(string(a.Source)) == domain.ParseSource(string(b.Source))
	signals["same_source"] = sameSource

	return domain.DuplicateMatch{
		PrimaryID:       primary.ID,
		DuplicateID:     duplicate.ID,
		Confidence:      confidence,
		Signals:         signals,
		ShouldAutoMerge: AutoMergeEligible(confidence, sameSource),
	}, true
}

// AutoMergeEligible applies the automatic merge policy.
func AutoMergeEligible(confidence int, sameSource bool) bool {
	if confidence >= AutoMergeConfidence {
		return true
	}
	return sameSource && confidence >= SameSourceAutoMergeConfidence
}

func score(a, b domain.Activity, timeDiff time.Duration) (int, map[string]any) {
	signals := map[string]any{
		"time_diff_minutes": round2(timeDiff.Minutes()),
		"time_match":        true,
	}

	confidence := 0

	typeMatch := strings.EqualFold(strings.TrimSpace(a.ActivityType), strings.TrimSpace(b.ActivityType))
	signals["type_match"] = typeMatch
	if typeMatch {
		confidence += 40
	}

	durationDiff := percentDiff(a.DurationMin, b.DurationMin)
	durationMatch := durationDiff <= relativeTolerancePct
	signals["duration_diff_pct"] = round2(durationDiff)
	signals["duration_match"] = durationMatch
	if durationMatch {
		confidence += 20
		if durationDiff < tightTolerancePct {
			confidence += 5
		}
	}

	if av, bv, ok := bothPositive(a.DistanceM, b.DistanceM); ok {
		diff := percentDiff(av, bv)
		match := diff <= relativeTolerancePct
		signals["distance_diff_pct"] = round2(diff)
		signals["distance_match"] = match
		if match {
			confidence += 20
			if diff < tightTolerancePct {
				confidence += 5
			}
		}
	}

	if av, bv, ok := bothPositive(a.AvgHeartRate, b.AvgHeartRate); ok {
		diff := math.Abs(av - bv)
		match := diff <= heartRateToleranceBPM
		signals["heart_rate_diff_bpm"] = round2(diff)
		signals["heart_rate_match"] = match
		if match {
			confidence += 10
		}
	}

	if av, bv, ok := bothPositive(a.Calories, b.Calories); ok {
		diff := percentDiff(av, bv)
		match := diff <= relativeTolerancePct
		signals["calories_diff_pct"] = round2(diff)
		signals["calories_match"] = match
		if match {
			confidence += 10
		}
	}

	if timeDiff < closeStartWindow {
		confidence += 10
	}
	if timeDiff == 0 {
		confidence += 10
	}

	if confidence > 100 {
		confidence = 100
	}
	signals["confidence"] = confidence
	return confidence, signals
}

// choosePrimary keeps the more complete record, then the more trusted source,
// then the earlier insert. The id comparison only keeps the choice symmetric.
func choosePrimary(a, b domain.Activity) (primary, duplicate domain.Activity, reason string) {
	ca, cb := a.Completeness(), b.Completeness()
	if ca != cb {
		if ca > cb {
			return a, b, "completeness"
		}
		return b, a, "completeness"
	}

	ra, rb := reconcile.Rank(a.Source), reconcile.Rank(b.Source)
	if ra != rb {
		if ra < rb {
			return a, b, "source_priority"
		}
		return b, a, "source_priority"
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return a, b, "created_at"
		}
		return b, a, "created_at"
	}

	if a.ID < b.ID {
		return a, b, "id"
	}
	return b, a, "id"
}

// percentDiff is |a-b| relative to the mean of a and b, in percent.
func percentDiff(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	if a == 0 || b == 0 {
		return 100
	}
	mean := (a + b) / 2
	return math.Abs(a-b) / mean * 100
}

func bothPositive(a, b *float64) (float64, float64, bool) {
	if a == nil || b == nil || *a <= 0 || *b <= 0 {
		return 0, 0, false
	}
	return *a, *b, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
