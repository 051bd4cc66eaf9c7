package agenda

import (
	"slices"
	"time"

	"todaycal/internal/model"
)

// Item is one event as presented.
type Item struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Time     string    `json:"time"` // localized "start〜end", or the all-day label
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day"`
	NextWeek bool      `json:"next_week"`
}

// Section is one upcoming day.
type Section struct {
	Label string    `json:"label"`
	Date  time.Time `json:"date"`
	Items []Item    `json:"items"`
}

// View is the grouped view model rendered by the page and /api/agenda.
type View struct {
	Locale string `json:"locale"`
	Ranges Ranges `json:"ranges"`

	TodayHeading string `json:"today_heading"`
	TodayEmpty   string `json:"today_empty"`
	Today        []Item `json:"today"`

	UpcomingHeading string    `json:"upcoming_heading"`
	UpcomingEmpty   string    `json:"upcoming_empty"`
	Upcoming        []Section `json:"upcoming"`
}

// Build buckets events relative to now and assembles the view model.
//
// now is first moved into f's location, so day boundaries follow the display
// timezone. Today's items are ordered by start. Events already listed under
// today are not repeated in the upcoming sections, which are ordered
// chronologically (SortGroups), not by first encounter.
func Build(events []model.Event, now time.Time, f Formatter) View {
	r := ComputeRanges(now.In(f.Location()))

	today := SelectToday(events, r.Today)
	slices.SortStableFunc(today, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})

	upcoming := SelectFuture(events, r.Today, r.NextWeekEnd)
	upcoming = slices.DeleteFunc(upcoming, func(ev model.Event) bool {
		return ev.Start.Before(r.Tomorrow)
	})
	groups := GroupByDay(upcoming, r, f)
	SortGroups(groups)

	v := View{
		Locale:          f.Tag().String(),
		Ranges:          r,
		TodayHeading:    f.Text(MsgTodayHeading),
		TodayEmpty:      f.Text(MsgTodayEmpty),
		Today:           make([]Item, 0, len(today)),
		UpcomingHeading: f.Text(MsgUpcomingHeading),
		UpcomingEmpty:   f.Text(MsgUpcomingEmpty),
		Upcoming:        make([]Section, 0, len(groups)),
	}

	for _, ev := range today {
		v.Today = append(v.Today, newItem(ev, r.IsNextWeek(ev), f))
	}
	for _, g := range groups {
		s := Section{Label: g.Label, Date: g.Date, Items: make([]Item, 0, len(g.Entries))}
		for _, e := range g.Entries {
			s.Items = append(s.Items, newItem(e.Event, e.NextWeek, f))
		}
		v.Upcoming = append(v.Upcoming, s)
	}
	return v
}

func newItem(ev model.Event, nextWeek bool, f Formatter) Item {
	label := f.TimeRange(ev.Start, ev.End)
	if ev.AllDay {
		label = f.Text(MsgAllDay)
	}
	return Item{
		ID:       ev.ID,
		Title:    ev.Title,
		Time:     label,
		Start:    ev.Start.In(f.Location()),
		End:      ev.End.In(f.Location()),
		AllDay:   ev.AllDay,
		NextWeek: nextWeek,
	}
}
