package reconcile

import "example.com/healthsync/internal/domain"

type fieldSpec[T any] struct {
	name string
	kind FieldKind
	get  func(*T) (any, bool)
	set  func(*T, any)
}

func floatField[T any](name string, ptr func(*T) **float64) fieldSpec[T] {
	return fieldSpec[T]{
		name: name,
		kind: Numeric,
		get: func(rec *T) (any, bool) {
			v := *ptr(rec)
			if v == nil {
				return nil, false
			}
			return *v, true
		},
		set: func(rec *T, value any) {
			if n, ok := toFloat(value); ok {
				*ptr(rec) = domain.Float(n)
			}
		},
	}
}

var activityFields = []fieldSpec[domain.Activity]{
	{
		name: "duration_minutes",
		kind: Numeric,
		get: func(a *domain.Activity) (any, bool) {
			if a.DurationMin <= 0 {
				return nil, false
			}
			return a.DurationMin, true
		},
		set: func(a *domain.Activity, value any) {
			if n, ok := toFloat(value); ok {
				a.DurationMin = n
			}
		},
	},
	floatField("distance_meters", func(a *domain.Activity) **float64 { return &a.DistanceM }),
	floatField("calories", func(a *domain.Activity) **float64 { return &a.Calories }),
	floatField("avg_heart_rate", func(a *domain.Activity) **float64 { return &a.AvgHeartRate }),
	floatField("max_heart_rate", func(a *domain.Activity) **float64 { return &a.MaxHeartRate }),
	{
		name: "avg_pace",
		kind: Text,
		get: func(a *domain.Activity) (any, bool) {
			if a.AvgPace == nil || *a.AvgPace == "" {
				return nil, false
			}
			return *a.AvgPace, true
		},
		set: func(a *domain.Activity, value any) {
			if s, ok := value.(string); ok {
				a.AvgPace = domain.String(s)
			}
		},
	},
	floatField("elevation_gain", func(a *domain.Activity) **float64 { return &a.ElevationGainM }),
	floatField("perceived_exertion", func(a *domain.Activity) **float64 { return &a.PerceivedExertion }),
}

var sleepFields = []fieldSpec[domain.SleepLog]{
	floatField("total_sleep_minutes", func(s *domain.SleepLog) **float64 { return &s.TotalSleepMin }),
	floatField("deep_sleep_minutes", func(s *domain.SleepLog) **float64 { return &s.DeepSleepMin }),
	floatField("light_sleep_minutes", func(s *domain.SleepLog) **float64 { return &s.LightSleepMin }),
	floatField("rem_sleep_minutes", func(s *domain.SleepLog) **float64 { return &s.REMSleepMin }),
	floatField("awake_minutes", func(s *domain.SleepLog) **float64 { return &s.AwakeMin }),
	floatField("sleep_score", func(s *domain.SleepLog) **float64 { return &s.SleepScore }),
	floatField("avg_hrv", func(s *domain.SleepLog) **float64 { return &s.AvgHRV }),
	floatField("avg_heart_rate", func(s *domain.SleepLog) **float64 { return &s.AvgHeartRate }),
	floatField("lowest_heart_rate", func(s *domain.SleepLog) **float64 { return &s.LowestHeartRate }),
}
