package reconcile

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
)

// Aggregated is the reconciled view of all raw records in one slot.
type Aggregated[T any] struct {
	Record            T
	PrimarySource     domain.Source
	Sources           []domain.Source
	ConflictsResolved int
	// Shadowed counts records ignored because an earlier record of the same
	// source already speaks for that source.
	Shadowed int
	Notes    []string
}

// AggregatedActivity is the folded view of one activity slot.
type AggregatedActivity = Aggregated[domain.Activity]

// AggregatedSleep is the folded view of one night.
type AggregatedSleep = Aggregated[domain.SleepLog]

// Aggregator merges records describing the same real-world event.
type Aggregator struct {
	resolver *Resolver
	log      zerolog.Logger
}

// NewAggregator constructs an Aggregator around resolver.
func NewAggregator(resolver *Resolver, log zerolog.Logger) *Aggregator {
	return &Aggregator{resolver: resolver, log: log.With().Str("component", "aggregator").Logger()}
}

// Activities folds activities of one user and slot. ok is false for an empty input.
func (a *Aggregator) Activities(records []domain.Activity) (AggregatedActivity, bool) {
	if len(records) == 0 {
		return AggregatedActivity{}, false
	}
	sorted := make([]domain.Activity, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return MoreTrusted(sorted[i].Source, sorted[j].Source)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	if len(sorted) == 1 {
		return AggregatedActivity{
			Record:        sorted[0].Clone(),
			PrimarySource: sorted[0].Source,
			Sources:       []domain.Source{sorted[0].Source},
		}, true
	}

	out := fold(a.resolver, sorted, activityFields, func(r domain.Activity) domain.Source { return r.Source }, domain.Activity.Clone)

	out.Record.Notes = joinNotes(sorted, func(r domain.Activity) (domain.Source, *string) { return r.Source, r.Notes })
	if out.Record.IsStrength() {
		var exercises []domain.Exercise
		for _, rec := range sorted {
			exercises = append(exercises, rec.Exercises...)
		}
		out.Record.Exercises = exercises
	}

	a.log.Debug().
		Str("user_id", out.Record.UserID).
		Str("primary_source", string(out.PrimarySource)).
		Int("records", len(sorted)).
		Int("conflicts", out.ConflictsResolved).
		Int("shadowed", out.Shadowed).
		Msg("aggregated activities")
	return out, true
}

// Sleep folds the sleep logs of one user and night. ok is false for an empty input.
func (a *Aggregator) Sleep(records []domain.SleepLog) (AggregatedSleep, bool) {
	if len(records) == 0 {
		return AggregatedSleep{}, false
	}
	sorted := make([]domain.SleepLog, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return MoreTrusted(sorted[i].Source, sorted[j].Source)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	if len(sorted) == 1 {
		return AggregatedSleep{
			Record:        sorted[0].Clone(),
			PrimarySource: sorted[0].Source,
			Sources:       []domain.Source{sorted[0].Source},
		}, true
	}

	out := fold(a.resolver, sorted, sleepFields, func(r domain.SleepLog) domain.Source { return r.Source }, domain.SleepLog.Clone)
	out.Record.Notes = joinNotes(sorted, func(r domain.SleepLog) (domain.Source, *string) { return r.Source, r.Notes })
	if out.Record.SleepScore != nil {
		out.Record.Quality = domain.QualityForScore(*out.Record.SleepScore)
	}

	a.log.Debug().
		Str("user_id", out.Record.UserID).
		Time("date", out.Record.Date).
		Str("primary_source", string(out.PrimarySource)).
		Int("records", len(sorted)).
		Int("conflicts", out.ConflictsResolved).
		Int("shadowed", out.Shadowed).
		Msg("aggregated sleep logs")
	return out, true
}

// fold seeds the result from the most trusted record and resolves every
// conflict field that at least two sources report. A field the base record
// lacks but exactly one other source reports is copied from that source.
// Each source is represented by its first record in sorted order; later
// records of the same source are counted as shadowed.
func fold[T any](resolver *Resolver, sorted []T, fields []fieldSpec[T], sourceOf func(T) domain.Source, clone func(T) T) Aggregated[T] {
	base := clone(sorted[0])
	baseSource := sourceOf(sorted[0])

	out := Aggregated[T]{PrimarySource: baseSource}
	seen := make(map[domain.Source]bool)
	for _, rec := range sorted {
		src := sourceOf(rec)
		if seen[src] {
			out.Shadowed++
			continue
		}
		seen[src] = true
		out.Sources = append(out.Sources, src)
	}

	for _, field := range fields {
		values := make(map[domain.Source]any)
		for i := range sorted {
			src := sourceOf(sorted[i])
			if _, taken := values[src]; taken {
				continue
			}
			if v, ok := field.get(&sorted[i]); ok {
				values[src] = v
			}
		}
		if len(values) < 2 {
			if len(values) == 1 {
				if _, baseHas := field.get(&base); !baseHas {
					for src, v := range values {
						field.set(&base, v)
						out.Notes = append(out.Notes, field.name+" from "+string(src))
					}
				}
			}
			continue
		}

		res, ok := resolver.Resolve(field.name, values, field.kind)
		if !ok {
			continue
		}
		field.set(&base, res.Value)
		out.ConflictsResolved++
		if res.Source != baseSource {
			out.Notes = append(out.Notes, field.name+" from "+string(res.Source))
		}
	}

	out.Record = base
	return out
}

func joinNotes[T any](sorted []T, notesOf func(T) (domain.Source, *string)) *string {
	parts := make([]string, 0, len(sorted))
	for _, rec := range sorted {
		src, notes := notesOf(rec)
		if notes == nil || strings.TrimSpace(*notes) == "" {
			continue
		}
		parts = append(parts, src.Label()+" "+strings.TrimSpace(*notes))
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, "\n")
	return &joined
}
