package reconcile

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"example.com/healthsync/internal/domain"
)

// FieldKind selects how a field's competing values are resolved.
type FieldKind int

const (
	// Numeric values may be blended when every source agrees within tolerance.
	Numeric FieldKind = iota
	// Text values always come from the most trusted source.
	Text
)

// agreementTolerance is the maximum relative deviation from the mean for
// numeric values to count as agreeing.
const agreementTolerance = 0.10

// Resolution is the outcome of resolving one field.
type Resolution struct {
	Value   any
	Source  domain.Source
	Blended bool
}

// Resolver picks a winning value when sources disagree on a field.
type Resolver struct {
	log zerolog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{log: log.With().Str("component", "conflict_resolver").Logger()}
}

// Resolve returns the winning value for field. The boolean is false when
// values is empty.
func (r *Resolver) Resolve(field string, values map[domain.Source]any, kind FieldKind) (Resolution, bool) {
	if len(values) == 0 {
		return Resolution{}, false
	}

	sources := make([]domain.Source, 0, len(values))
	for source := range values {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return MoreTrusted(sources[i], sources[j]) })

	winner := sources[0]
	res := Resolution{Value: values[winner], Source: winner}

	if kind != Numeric {
		return res, true
	}

	numbers := make([]float64, 0, len(values))
	for _, source := range sources {
		if n, ok := toFloat(values[source]); ok {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) < 2 {
		return res, true
	}

	mean := stat.Mean(numbers, nil)
	if mean <= 0 {
		return res, true
	}
	for _, n := range numbers {
		if math.Abs(n-mean) > mean*agreementTolerance {
			r.log.Debug().Str("field", field).Str("winner", string(winner)).Msg("sources disagree, keeping most trusted value")
			return res, true
		}
	}

	res.Value = math.Round(mean*100) / 100
	res.Blended = true
	r.log.Debug().Str("field", field).Float64("mean", res.Value.(float64)).Int("sources", len(numbers)).Msg("sources agree, blending")
	return res, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
