package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "todaycal/internal/log"
	"todaycal/internal/model"
)

// ParseError is returned when a calendar document cannot be decoded.
// Parsing is all-or-nothing: no events are returned alongside it.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "ics: malformed calendar document: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes a full VCALENDAR document into one model.Event per VEVENT.
//
//   - Start/End are absolute instants converted into loc (time.Local when nil).
//     TZID-qualified and UTC values keep their instant; floating values are
//     read as wall-clock time in loc.
//   - DATE-valued DTSTART marks the event all-day, starting at midnight in loc.
//   - A missing DTEND is derived from DURATION, else one day for all-day
//     events, else the start itself.
//   - A TZID unknown to the Go zone database (Windows names written by
//     Outlook and Exchange) is resolved from the document's VTIMEZONE
//     blocks; an undefined one is read as floating.
//   - A missing UID is replaced by a random UUID so ids are never empty.
func Parse(raw string, loc *time.Location) ([]model.Event, error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Err: errors.New("empty document")}
	}
	if !hasCalendarEnd(raw) {
		return nil, &ParseError{Err: errors.New("missing END:VCALENDAR")}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	zones := timezones(cal)
	vevents := cal.Events()
	events := make([]model.Event, 0, len(vevents))
	for i, ve := range vevents {
		ev, err := parseVEvent(ve, loc, zones)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("vevent %d: %w", i, err)}
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location, zones zoneTable) (model.Event, error) {
	var out model.Event

	out.ID = ve.Id()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	start, err := readTime(ve, dtStart, loc, zones, out.AllDay, true)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start

	switch dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case dtEnd != nil:
		end, err := readTime(ve, dtEnd, loc, zones, out.AllDay && isDateValue(dtEnd), false)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := ParseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return out, fmt.Errorf("DURATION: %w", err)
		}
		out.End = d.AddTo(out.Start)
	case out.AllDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}

	return out, nil
}

// readTime resolves a DTSTART/DTEND property through the library's TZID
// handling and normalizes the result into loc.
func readTime(ve *ical.VEvent, prop *ical.IANAProperty, loc *time.Location, zones zoneTable, allDay, isStart bool) (time.Time, error) {
	if tzid, ok := unknownTZID(prop); ok {
		return readZonedTime(prop, tzid, loc, zones, allDay)
	}

	var (
		t   time.Time
		err error
	)
	switch {
	case allDay && isStart:
		t, err = ve.GetAllDayStartAt()
	case allDay:
		t, err = ve.GetAllDayEndAt()
	case isStart:
		t, err = ve.GetStartAt()
	default:
		t, err = ve.GetEndAt()
	}
	if err != nil {
		return time.Time{}, err
	}

	// All-day dates and floating date-times carry no zone of their own; the
	// library reads them in time.Local, so re-anchor the wall clock in loc.
	if allDay || isFloating(prop) {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return t.In(loc), nil
}

// readZonedTime handles values whose TZID the library cannot load.
func readZonedTime(prop *ical.IANAProperty, tzid string, loc *time.Location, zones zoneTable, allDay bool) (time.Time, error) {
	wall, err := parseWallClock(prop.Value)
	if err != nil {
		return time.Time{}, err
	}
	if allDay {
		return time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, loc), nil
	}

	zone := loc
	if rules, ok := zones[tzid]; ok {
		zone = rules.location(wall)
	} else {
		appLog.Debug("undefined TZID, reading as floating time", "tzid", tzid)
	}
	t := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, zone)
	return t.In(loc), nil
}

func isDateValue(prop *ical.IANAProperty) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func isFloating(prop *ical.IANAProperty) bool {
	if _, ok := prop.ICalParameters["TZID"]; ok {
		return false
	}
	return !strings.HasSuffix(strings.TrimSpace(prop.Value), "Z")
}

// hasCalendarEnd reports whether the document is terminated. The decoder
// accepts truncated input silently, which would yield a partial event list.
func hasCalendarEnd(raw string) bool {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		return strings.EqualFold(l, "END:VCALENDAR")
	}
	return false
}

// Validate reports events that break the model invariants: a non-empty id
// and title, and start not after end. The decoder does not enforce these.
func Validate(events []model.Event) []error {
	var errs []error
	for _, ev := range events {
		if ev.ID == "" {
			errs = append(errs, fmt.Errorf("event %q: empty id", ev.Title))
		}
		if ev.Title == "" {
			errs = append(errs, fmt.Errorf("event %s: empty title", ev.ID))
		}
		if ev.Start.After(ev.End) {
			errs = append(errs, fmt.Errorf("event %s: start %s is after end %s",
				ev.ID, ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339)))
		}
	}
	return errs
}
