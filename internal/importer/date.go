package importer

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// day-first dates as exported by the marketplace, optionally with a time
var dayFirst = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// serial day 0 of spreadsheet dates
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads a cell as a timestamp in loc. ok is false when nothing
// matched; callers fall back to the current time.
func ParseDate(c Cell, loc *time.Location) (t time.Time, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	s := c.String()
	if s == "" {
		return time.Time{}, false
	}

	if c.Numeric {
		return fromSerial(s, loc)
	}

	if m := dayFirst.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		var hour, minute, sec int
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
		}
		if m[6] != "" {
			sec, _ = strconv.Atoi(m[6])
		}
		if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || sec > 59 {
			return time.Time{}, false
		}
		t = time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
		if t.Day() != day {
			// 31-02-2024 and friends
			return time.Time{}, false
		}
		return t, true
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	// text cells holding a serial number
	return fromSerial(s, loc)
}

// DateOrNow is ParseDate with the "now" fallback applied.
func DateOrNow(c Cell, loc *time.Location, now time.Time) time.Time {
	if t, ok := ParseDate(c, loc); ok {
		return t
	}
	return now
}

func fromSerial(s string, loc *time.Location) (time.Time, bool) {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 0 || math.IsInf(serial, 0) || math.IsNaN(serial) {
		return time.Time{}, false
	}
	ms := math.Round(serial * 86400000)
	utc := serialEpoch.Add(time.Duration(ms) * time.Millisecond)
	// serials carry wall clock time, keep it in the shop's zone
	return time.Date(utc.Year(), utc.Month(), utc.Day(), utc.Hour(), utc.Minute(), utc.Second(), 0, loc), true
}
