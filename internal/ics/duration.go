package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is an RFC 5545 DURATION value. Days (and weeks) are nominal and
// applied with AddDate so that they span DST transitions as calendar days;
// the time part is exact.
type Duration struct {
	Days int
	Time time.Duration
}

// AddTo returns t shifted by d.
func (d Duration) AddTo(t time.Time) time.Time {
	return t.AddDate(0, 0, d.Days).Add(d.Time)
}

// ParseDuration parses values such as "PT1H30M", "P1D", "P2W" or "-PT15M".
func ParseDuration(s string) (Duration, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	sign := 1
	switch {
	case strings.HasPrefix(v, "-"):
		sign = -1
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") || len(v) < 3 {
		return Duration{}, fmt.Errorf("invalid duration %q", s)
	}
	v = v[1:]

	var (
		out    Duration
		inTime bool
		num    strings.Builder
	)
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
			continue
		case r == 'T':
			if inTime || num.Len() > 0 {
				return Duration{}, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}

		if num.Len() == 0 {
			return Duration{}, fmt.Errorf("invalid duration %q", s)
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return Duration{}, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		num.Reset()

		switch {
		case r == 'W' && !inTime:
			out.Days += 7 * n
		case r == 'D' && !inTime:
			out.Days += n
		case r == 'H' && inTime:
			out.Time += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			out.Time += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			out.Time += time.Duration(n) * time.Second
		default:
			return Duration{}, fmt.Errorf("invalid duration %q", s)
		}
	}
	if num.Len() > 0 {
		return Duration{}, fmt.Errorf("invalid duration %q: trailing number", s)
	}

	out.Days *= sign
	out.Time *= time.Duration(sign)
	return out, nil
}
