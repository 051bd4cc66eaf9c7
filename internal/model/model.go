package model

import "time"

// Event is one normalized calendar entry. It is created by the ICS parser
// from a single VEVENT and never mutated afterwards; each refresh replaces
// the whole list.
type Event struct {
	ID    string // iCalendar UID (or a generated id when the feed omits it)
	Title string // SUMMARY

	// AllDay is set for DATE-valued DTSTART. Bucketing ignores it.
	AllDay bool

	// Start / End are absolute instants expressed in the display timezone.
	Start time.Time
	End   time.Time
}
