// Package reconcile folds raw records from several sources into one view.
package reconcile

import "example.com/healthsync/internal/domain"

// UnknownSourceRank is the rank of any source missing from the table.
const UnknownSourceRank = 100

var sourceRanks = map[domain.Source]int{
	domain.SourceGarmin:     1,
	domain.SourceApple:      2,
	domain.SourceFitbit:     3,
	domain.SourceWhoop:      4,
	domain.SourceOura:       5,
	domain.SourcePolar:      6,
	domain.SourceSuunto:     7,
	domain.SourceWahoo:      8,
	domain.SourceManual:     9,
	domain.SourceQuickEntry: 10,
}

// Rank returns the reliability rank of a source. Lower is more trusted.
func Rank(source domain.Source) int {
	if rank, ok := sourceRanks[domain.ParseSource(string(source))]; ok {
		return rank
	}
	return UnknownSourceRank
}

// MoreTrusted reports whether a outranks b. Equal ranks fall back to the
// source name so the order is total.
func MoreTrusted(a, b domain.Source) bool {
	ra, rb := Rank(a), Rank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}
