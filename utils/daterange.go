package utils

import "time"

const dateLayout = "2006-01-02"

// DateRange holds normalized inclusive UTC boundaries for a timestamp filter.
// A nil boundary means no constraint on that side.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// NormalizeDateRange converts caller-supplied calendar date strings into
// canonical UTC boundaries: the start resolves to 00:00:00.000 UTC of that
// date, the end to 23:59:59.999 UTC (inclusive end-of-day). Malformed input
// normalizes to "no constraint" rather than an error; dashboards rely on an
// empty or garbled date field degrading to an unfiltered query.
func NormalizeDateRange(startDate, endDate string) DateRange {
	var dr DateRange
	if t, ok := ParseStartDate(startDate); ok {
		dr.Start = &t
	}
	if t, ok := ParseEndDate(endDate); ok {
		dr.End = &t
	}
	return dr
}

// ParseStartDate resolves a YYYY-MM-DD string to the start of that UTC day.
func ParseStartDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ParseEndDate resolves a YYYY-MM-DD string to 23:59:59.999 UTC of that day,
// so that <= comparisons against millisecond timestamps stay inclusive.
func ParseEndDate(s string) (time.Time, bool) {
	t, ok := ParseStartDate(s)
	if !ok {
		return time.Time{}, false
	}
	return t.Add(24*time.Hour - time.Millisecond), true
}
