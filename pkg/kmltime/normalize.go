// Package kmltime normalizes heterogeneous attribute date/time values
// into the timestamp strings the document format expects. Free text is
// parsed twice with two different default fillers; fields on which both
// parses agree were genuinely present in the input, and the output is
// truncated at the first field that was filled in by a default. The
// result degrades from a full date-time down to year-month or year-only.
package kmltime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	strftime "github.com/ncruces/go-strftime"
)

const minYear = 1

type parts struct {
	year, month, day     int
	hour, minute, second int
	msec                 int
}

const (
	hasYear = 1 << iota
	hasMonth
	hasDay
	hasHour
	hasMinute
	hasSecond
)

const hasDate = hasYear | hasMonth | hasDay
const hasClock = hasHour | hasMinute | hasSecond

type layoutSpec struct {
	format string
	mask   int
}

// Most specific first; time.Parse additionally accepts fractional
// seconds after any seconds field.
var layouts = []layoutSpec{
	{time.RFC3339, hasDate | hasClock},
	{"2006-01-02T15:04:05", hasDate | hasClock},
	{"2006-01-02 15:04:05", hasDate | hasClock},
	{"2006-01-02T15:04", hasDate | hasHour | hasMinute},
	{"2006-01-02 15:04", hasDate | hasHour | hasMinute},
	{"2006-01-02", hasDate},
	{"2006/01/02", hasDate},
	{"01/02/2006", hasDate},
	{"1/2/2006", hasDate},
	{"January 2, 2006", hasDate},
	{"Jan 2, 2006", hasDate},
	{"2 January 2006", hasDate},
	{"02 Jan 2006", hasDate},
	{"2 Jan 2006", hasDate},
	{"2006-01", hasYear | hasMonth},
	{"January 2006", hasYear | hasMonth},
	{"Jan 2006", hasYear | hasMonth},
	{"2006", hasYear},
	{"15:04:05", hasClock},
	{"15:04", hasHour | hasMinute},
	{"3:04:05 PM", hasClock},
	{"3:04 PM", hasHour | hasMinute},
}

func parseWithDefault(s string, def parts) (parts, bool) {
	for _, l := range layouts {
		t, err := time.Parse(l.format, s)
		if err != nil {
			continue
		}
		p := def
		if l.mask&hasYear != 0 {
			p.year = t.Year()
		}
		if l.mask&hasMonth != 0 {
			p.month = int(t.Month())
		}
		if l.mask&hasDay != 0 {
			p.day = t.Day()
		}
		if l.mask&hasHour != 0 {
			p.hour = t.Hour()
		}
		if l.mask&hasMinute != 0 {
			p.minute = t.Minute()
		}
		if l.mask&hasSecond != 0 {
			p.second = t.Second()
			p.msec = t.Nanosecond() / 1e6
		}
		return p, true
	}
	return parts{}, false
}

func (p parts) time() time.Time {
	return time.Date(p.year, time.Month(p.month), p.day, p.hour, p.minute, p.second, p.msec*1e6, time.Local)
}

func formatFull(p parts) string {
	s := strftime.Format("%Y-%m-%dT%H:%M:%S", p.time())
	if p.msec != 0 {
		s += fmt.Sprintf(".%03d", p.msec)
	}
	return s
}

// degrade compares the two heuristic parses field by field and keeps
// only the leading fields on which they agree.
func degrade(d1, d2 parts) (string, bool) {
	if d1.year == minYear {
		return "", false
	}
	t := d1.time()
	if d1.month != d2.month {
		return strftime.Format("%Y", t), true
	}
	if d1.day != d2.day {
		return strftime.Format("%Y-%m", t), true
	}
	if d1.hour != d2.hour {
		return strftime.Format("%Y-%m-%d", t), true
	}
	return formatFull(d1), true
}

func defaultOne() parts { return parts{year: minYear, month: 1, day: 1} }

func defaultTwo() parts {
	return parts{year: minYear, month: 2, day: 2, hour: 1, minute: 1, second: 1, msec: 1}
}

func fromTime(t time.Time) string {
	s := strftime.Format("%Y-%m-%dT%H:%M:%S", t)
	if ms := t.Nanosecond() / 1e6; ms != 0 {
		s += fmt.Sprintf(".%03d", ms)
	}
	return s
}

func fromEpoch(f float64) string {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return fromTime(time.Unix(sec, nsec))
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// Timestamp normalizes a combined date/time value. The boolean is false
// when the value carries no usable information; that is not an error.
func Timestamp(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if t.IsZero() {
			return "", false
		}
		return fromTime(t), true
	case float64:
		return fromEpoch(t), true
	case float32:
		return fromEpoch(float64(t)), true
	case int:
		return fromEpoch(float64(t)), true
	case int64:
		return fromEpoch(float64(t)), true
	}
	s := asString(v)
	if s == "" {
		return "", false
	}
	// A bare four digit string reads as a year, so the calendar layouts
	// get the first try; only numeric strings no layout accepts are
	// epoch seconds.
	if d1, ok := parseWithDefault(s, defaultOne()); ok {
		d2, _ := parseWithDefault(s, defaultTwo())
		return degrade(d1, d2)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f), true
	}
	return "", false
}

// DateAndTime normalizes separately supplied date and time-of-day
// values and concatenates them. A date without a time yields a date (or
// partial date) string; a time without a date yields no value, since a
// timestamp needs a date.
func DateAndTime(dateV, timeV any) (string, bool) {
	dateStr, partial := "", ""
	switch t := dateV.(type) {
	case nil:
		return "", false
	case time.Time:
		if t.IsZero() {
			return "", false
		}
		dateStr = strftime.Format("%Y-%m-%d", t)
	default:
		s := asString(dateV)
		if s == "" {
			return "", false
		}
		d1, ok := parseWithDefault(s, defaultOne())
		if !ok || d1.year == minYear {
			return "", false
		}
		dateStr = strftime.Format("%Y-%m-%d", d1.time())
		if isEmpty(timeV) {
			d2, _ := parseWithDefault(s, defaultTwo())
			partial = strftime.Format("%Y", d1.time())
			if d1.month == d2.month {
				partial += fmt.Sprintf("-%02d", d1.month)
				if d1.day == d2.day {
					partial += fmt.Sprintf("-%02d", d1.day)
				}
			}
		}
	}

	timeStr := ""
	if !isEmpty(timeV) {
		switch t := timeV.(type) {
		case time.Time:
			timeStr = strftime.Format("%H:%M:%S", t)
			if ms := t.Nanosecond() / 1e6; ms != 0 {
				timeStr += fmt.Sprintf(".%03d", ms)
			}
		default:
			s := asString(timeV)
			d, ok := parseWithDefault(s, defaultOne())
			if !ok {
				return "", false
			}
			timeStr = fmt.Sprintf("%02d:%02d:%02d", d.hour, d.minute, d.second)
		}
	}

	if timeStr != "" {
		return dateStr + "T" + timeStr, true
	}
	if partial != "" {
		return partial, true
	}
	return dateStr, true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case time.Time:
		return t.IsZero()
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	}
	return false
}

// Resolve applies the field priority rule: a combined value wins over
// separate date and time values.
func Resolve(combined, dateV, timeV any) (string, bool) {
	if !isEmpty(combined) {
		return Timestamp(combined)
	}
	return DateAndTime(dateV, timeV)
}
