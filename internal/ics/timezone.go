package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "todaycal/internal/log"
)

// zoneTable holds the VTIMEZONE definitions of one document, keyed by TZID.
// Outlook and Exchange name zones the Windows way ("Tokyo Standard Time"),
// which the Go zone database cannot load, so such TZIDs are resolved here.
type zoneTable map[string]*zoneRules

type zoneRules struct {
	name        string
	observances []observance
}

// observance is one STANDARD or DAYLIGHT block. Onsets are wall clocks in
// UTC so they compare directly with event wall clocks.
type observance struct {
	offset int // TZOFFSETTO, seconds east of UTC
	start  time.Time
	rule   *rrule.RRule // nil for a single onset at start
}

func timezones(cal *ical.Calendar) zoneTable {
	zones := zoneTable{}
	for _, tz := range cal.Timezones() {
		id := tz.GetProperty(ical.ComponentPropertyTzid)
		if id == nil || id.Value == "" {
			continue
		}
		rules := &zoneRules{name: id.Value}
		for _, c := range tz.SubComponents() {
			var cb *ical.ComponentBase
			switch sub := c.(type) {
			case *ical.Standard:
				cb = &sub.ComponentBase
			case *ical.Daylight:
				cb = &sub.ComponentBase
			default:
				continue
			}
			o, err := parseObservance(cb)
			if err != nil {
				appLog.Debug("skipping timezone observance", "tzid", id.Value, "reason", err.Error())
				continue
			}
			rules.observances = append(rules.observances, o)
		}
		if len(rules.observances) > 0 {
			zones[id.Value] = rules
		}
	}
	return zones
}

func parseObservance(cb *ical.ComponentBase) (observance, error) {
	var o observance

	to := cb.GetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto))
	if to == nil {
		return o, errors.New("missing TZOFFSETTO")
	}
	offset, err := parseUTCOffset(to.Value)
	if err != nil {
		return o, err
	}
	o.offset = offset

	p := cb.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return o, errors.New("missing DTSTART")
	}
	start, err := parseWallClock(p.Value)
	if err != nil {
		return o, fmt.Errorf("DTSTART: %w", err)
	}
	o.start = start

	if p := cb.GetProperty(ical.ComponentPropertyRrule); p != nil {
		r, err := rrule.StrToRRule(p.Value)
		if err != nil {
			// The block still applies from DTSTART on.
			appLog.Debug("ignoring timezone rule", "rrule", p.Value, "reason", err.Error())
		} else {
			r.DTStart(o.start)
			o.rule = r
		}
	}
	return o, nil
}

// lastOnset returns the latest onset at or before wall.
func (o observance) lastOnset(wall time.Time) (time.Time, bool) {
	if o.rule == nil {
		return o.start, !o.start.After(wall)
	}
	at := o.rule.Before(wall, true)
	return at, !at.IsZero()
}

// location returns a fixed zone carrying the offset in effect at wall, the
// one of the most recent onset at or before it. Without any earlier onset
// the first observance wins.
func (z *zoneRules) location(wall time.Time) *time.Location {
	best := z.observances[0]
	var bestAt time.Time
	found := false
	for _, o := range z.observances {
		at, ok := o.lastOnset(wall)
		if !ok {
			continue
		}
		if !found || at.After(bestAt) {
			best, bestAt, found = o, at, true
		}
	}
	return time.FixedZone(z.name, best.offset)
}

// parseUTCOffset reads "+0900", "-0500" or "+053000" into seconds.
func parseUTCOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 && len(s) != 7 {
		return 0, fmt.Errorf("bad UTC offset %q", s)
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("bad UTC offset %q", s)
	}
	secs := 0
	for i, unit := range []int{3600, 60, 1} {
		lo := 1 + 2*i
		if lo >= len(s) {
			break
		}
		v, err := strconv.Atoi(s[lo : lo+2])
		if err != nil {
			return 0, fmt.Errorf("bad UTC offset %q", s)
		}
		secs += v * unit
	}
	return sign * secs, nil
}

// parseWallClock reads a DATE or local DATE-TIME value as a wall clock in UTC.
func parseWallClock(v string) (time.Time, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "Z")
	if strings.Contains(v, "T") {
		return time.Parse("20060102T150405", v)
	}
	return time.Parse("20060102", v)
}

// unknownTZID reports the TZID of prop when Go cannot load it.
func unknownTZID(prop *ical.IANAProperty) (string, bool) {
	ids, ok := prop.ICalParameters["TZID"]
	if !ok || len(ids) != 1 {
		return "", false
	}
	if _, err := time.LoadLocation(ids[0]); err != nil {
		return ids[0], true
	}
	return "", false
}
