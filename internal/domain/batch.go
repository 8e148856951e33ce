package domain

import "fmt"

// BatchSummary is returned by batch operations. A single failing item is
// recorded here and never fails the whole call.
type BatchSummary struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// Fail records a failure for item.
func (b *BatchSummary) Fail(item string, err error) {
	b.Failed++
	b.Errors = append(b.Errors, fmt.Sprintf("%s: %v", item, err))
}
