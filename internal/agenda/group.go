package agenda

import (
	"slices"
	"time"

	"todaycal/internal/model"
)

// Entry is an event placed in a DayGroup.
type Entry struct {
	Event model.Event
	// NextWeek is set when the event starts after the current week
	// (see Ranges.IsNextWeek). The page does not use it yet.
	NextWeek bool
}

// DayGroup is the set of events sharing one calendar day.
type DayGroup struct {
	Label   string    // Formatter.DateLabel of Date
	Date    time.Time // midnight of the day, in the formatter's location
	Entries []Entry   // ascending by start
}

// GroupByDay partitions events by the calendar day of their start, as seen
// in f's location.
//
// Groups appear in the order their first event is encountered in events,
// not in calendar order; callers that need chronological sections must use
// SortGroups. Entries within a group are sorted ascending by start, ties
// keeping input order.
func GroupByDay(events []model.Event, r Ranges, f Formatter) []DayGroup {
	groups := make([]DayGroup, 0)
	index := make(map[string]int)

	for _, ev := range events {
		label := f.DateLabel(ev.Start)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{
				Label: label,
				Date:  startOfDay(ev.Start.In(f.Location())),
			})
		}
		groups[i].Entries = append(groups[i].Entries, Entry{
			Event:    ev,
			NextWeek: r.IsNextWeek(ev),
		})
	}

	for i := range groups {
		slices.SortStableFunc(groups[i].Entries, func(a, b Entry) int {
			return a.Event.Start.Compare(b.Event.Start)
		})
	}
	return groups
}

// SortGroups orders groups chronologically by Date, in place.
func SortGroups(groups []DayGroup) {
	slices.SortStableFunc(groups, func(a, b DayGroup) int {
		return a.Date.Compare(b.Date)
	})
}
