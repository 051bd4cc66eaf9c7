package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

// Zone blocks as written by Outlook/Exchange feeds.
var tokyoVTimezone = strings.Join([]string{
	"BEGIN:VTIMEZONE",
	"TZID:Tokyo Standard Time",
	"BEGIN:STANDARD",
	"DTSTART:16010101T000000",
	"TZOFFSETFROM:+0900",
	"TZOFFSETTO:+0900",
	"END:STANDARD",
	"BEGIN:DAYLIGHT",
	"DTSTART:16010101T000000",
	"TZOFFSETFROM:+0900",
	"TZOFFSETTO:+0900",
	"END:DAYLIGHT",
	"END:VTIMEZONE",
}, "\r\n")

var easternVTimezone = strings.Join([]string{
	"BEGIN:VTIMEZONE",
	"TZID:Eastern Standard Time",
	"BEGIN:STANDARD",
	"DTSTART:16010101T020000",
	"TZOFFSETFROM:-0400",
	"TZOFFSETTO:-0500",
	"RRULE:FREQ=YEARLY;INTERVAL=1;BYDAY=1SU;BYMONTH=11",
	"END:STANDARD",
	"BEGIN:DAYLIGHT",
	"DTSTART:16010101T020000",
	"TZOFFSETFROM:-0500",
	"TZOFFSETTO:-0400",
	"RRULE:FREQ=YEARLY;INTERVAL=1;BYDAY=2SU;BYMONTH=3",
	"END:DAYLIGHT",
	"END:VTIMEZONE",
}, "\r\n")

func TestParse_WindowsTZIDFromVTimezone(t *testing.T) {
	doc := calendar(
		tokyoVTimezone,
		vevent(
			"UID:tokyo",
			"SUMMARY:Review",
			"DTSTART;TZID=Tokyo Standard Time:20261019T100000",
			"DTEND;TZID=Tokyo Standard Time:20261019T110000",
		),
	)

	events, err := Parse(doc, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, events[0].Start.Equal(time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)))
	assert.True(t, events[0].End.Equal(time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, events[0].Start.Location())
}

func TestParse_WindowsTZIDFollowsDaylightRules(t *testing.T) {
	doc := calendar(
		easternVTimezone,
		vevent(
			"UID:summer",
			"SUMMARY:Before fallback",
			"DTSTART;TZID=Eastern Standard Time:20261019T100000",
			"DTEND;TZID=Eastern Standard Time:20261019T110000",
		),
		vevent(
			"UID:winter",
			"SUMMARY:After fallback",
			"DTSTART;TZID=Eastern Standard Time:20261105T100000",
			"DTEND;TZID=Eastern Standard Time:20261105T110000",
		),
	)

	events, err := Parse(doc, jst)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// EDT (-4) in October, EST (-5) after the first Sunday of November.
	assert.True(t, events[0].Start.Equal(time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)))
	assert.True(t, events[1].Start.Equal(time.Date(2026, 11, 5, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, jst, events[1].Start.Location())
}

func TestParse_UndefinedTZIDIsFloating(t *testing.T) {
	doc := calendar(
		vevent(
			"UID:nozone",
			"SUMMARY:Mystery zone",
			"DTSTART;TZID=Custom Zone:20261019T090000",
			"DTEND;TZID=Custom Zone:20261019T100000",
		),
		vevent(
			"UID:allday",
			"SUMMARY:Holiday",
			"DTSTART;VALUE=DATE;TZID=Custom Zone:20261020",
		),
	)

	events, err := Parse(doc, jst)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, jst), events[0].Start)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, jst), events[0].End)

	assert.True(t, events[1].AllDay)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, jst), events[1].Start)
	assert.Equal(t, time.Date(2026, 10, 21, 0, 0, 0, 0, jst), events[1].End)
}

func TestObservanceLastOnset(t *testing.T) {
	start := time.Date(1601, 1, 1, 2, 0, 0, 0, time.UTC)
	yearly := func(rule string) observance {
		r, err := rrule.StrToRRule(rule)
		require.NoError(t, err)
		r.DTStart(start)
		return observance{start: start, rule: r}
	}
	wall := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		o    observance
		want time.Time
	}{
		{"first sunday of november", yearly("FREQ=YEARLY;BYDAY=1SU;BYMONTH=11"), time.Date(2025, 11, 2, 2, 0, 0, 0, time.UTC)},
		{"second sunday of march", yearly("FREQ=YEARLY;BYDAY=2SU;BYMONTH=3"), time.Date(2026, 3, 8, 2, 0, 0, 0, time.UTC)},
		{"last sunday of october", yearly("FREQ=YEARLY;BYDAY=-1SU;BYMONTH=10"), time.Date(2025, 10, 26, 2, 0, 0, 0, time.UTC)},
		{"no rule", observance{start: start}, start},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.o.lastOnset(wall)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := observance{start: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}.lastOnset(wall)
	assert.False(t, ok)
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "+0900", want: 9 * 3600},
		{in: "-0500", want: -5 * 3600},
		{in: "+053000", want: 5*3600 + 30*60},
		{in: "0900", wantErr: true},
		{in: "+9", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUTCOffset(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
