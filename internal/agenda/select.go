package agenda

import (
	"time"

	"todaycal/internal/model"
)

// SelectToday keeps events with today <= start < today + 1 day, in input order.
func SelectToday(events []model.Event, today time.Time) []model.Event {
	end := today.AddDate(0, 0, 1)
	out := make([]model.Event, 0)
	for _, ev := range events {
		if !ev.Start.Before(today) && ev.Start.Before(end) {
			out = append(out, ev)
		}
	}
	return out
}

// SelectFuture keeps events with today < start <= nextWeekEnd, in input order.
//
// Both bounds are instants, not days: an event starting exactly at today's
// midnight is not "future", and one starting exactly at nextWeekEnd's
// midnight is. Later events on the nextWeekEnd day are excluded.
func SelectFuture(events []model.Event, today, nextWeekEnd time.Time) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Start.After(today) && !ev.Start.After(nextWeekEnd) {
			out = append(out, ev)
		}
	}
	return out
}
