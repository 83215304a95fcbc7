// Package resolver implements the two resolution strategies: FuzzyResolver
// (infers per-file intervals from path tokens and neighbors) and
// IndexedResolver (looks intervals up in a persisted index).
package resolver

import "time"

// FileInterval is the triple (path, begin, end) a resolver emits. Begin
// and End are inclusive bounds on the file's data interval.
type FileInterval struct {
	Path  string
	Begin time.Time
	End   time.Time
}

// Window is an optional query interval. A nil Begin or End means
// unbounded on that side.
type Window struct {
	Begin *time.Time
	End   *time.Time
}

// Overlaps reports whether a candidate [begin, end] interval overlaps the
// window, per the inclusive overlap predicate used throughout the design:
// (end is none OR begin <= End) AND (begin is none OR Begin <= end).
func (w Window) Overlaps(begin, end time.Time) bool {
	if w.End != nil && begin.After(*w.End) {
		return false
	}
	if w.Begin != nil && end.Before(*w.Begin) {
		return false
	}
	return true
}
