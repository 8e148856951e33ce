package domain

import "strings"

// Source identifies the device or channel that produced a raw record.
type Source string

const (
	SourceGarmin     Source = "garmin"
	SourceApple      Source = "apple"
	SourceFitbit     Source = "fitbit"
	SourceWhoop      Source = "whoop"
	SourceOura       Source = "oura"
	SourcePolar      Source = "polar"
	SourceSuunto     Source = "suunto"
	SourceWahoo      Source = "wahoo"
	SourceManual     Source = "manual"
	SourceQuickEntry Source = "quick_entry"
)

// KnownSources lists every source the platform ingests from.
var KnownSources = []Source{
	SourceGarmin,
	SourceApple,
	SourceFitbit,
	SourceWhoop,
	SourceOura,
	SourcePolar,
	SourceSuunto,
	SourceWahoo,
	SourceManual,
	SourceQuickEntry,
}

// ParseSource normalises a free-form source label. Unknown labels are kept
// verbatim so that they rank lowest instead of being rejected.
func ParseSource(raw string) Source {
	return Source(strings.ToLower(strings.TrimSpace(raw)))
}

// Label renders the source the way merge notes tag it, e.g. "[GARMIN]".
func (s Source) Label() string {
	return "[" + strings.ToUpper(string(s)) + "]"
}
