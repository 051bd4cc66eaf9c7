// Package agenda buckets parsed events into the "today" and "upcoming"
// windows and groups upcoming events by calendar day for display.
package agenda

import (
	"time"

	"todaycal/internal/model"
)

// Ranges holds the day boundaries for one render. All values are midnight
// in the location of the instant they were computed from.
type Ranges struct {
	Today         time.Time `json:"today"`
	Tomorrow      time.Time `json:"tomorrow"`
	ThisWeekStart time.Time `json:"this_week_start"` // Sunday on or before Today
	NextWeekEnd   time.Time `json:"next_week_end"`   // ThisWeekStart + 13 days
}

// ComputeRanges derives the boundaries from now, in now's location.
// Day arithmetic uses AddDate, so a DST change never shifts a boundary off
// midnight.
func ComputeRanges(now time.Time) Ranges {
	today := startOfDay(now)
	thisWeekStart := today.AddDate(0, 0, -int(today.Weekday()))
	return Ranges{
		Today:         today,
		Tomorrow:      today.AddDate(0, 0, 1),
		ThisWeekStart: thisWeekStart,
		NextWeekEnd:   thisWeekStart.AddDate(0, 0, 13),
	}
}

// FollowingWeekStart is the Sunday that starts the week after the current one.
func (r Ranges) FollowingWeekStart() time.Time {
	return r.ThisWeekStart.AddDate(0, 0, 7)
}

// IsNextWeek reports whether ev starts after the current week's boundary
// (ThisWeekStart + 7 days, exclusive).
func (r Ranges) IsNextWeek(ev model.Event) bool {
	return ev.Start.After(r.FollowingWeekStart())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
