package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of report dates.
const DateLayout = "2006-01-02"

var relativeDate = regexp.MustCompile(`^(\d+)\s+(day|week|month|year)s?\s+ago$`)

// ParseDate resolves an absolute or relative date against now and returns
// midnight of that day in now's location. Accepted forms are YYYY-MM-DD,
// RFC 3339 timestamps, "today", "yesterday" and "N day(s)/week(s)/month(s)/year(s) ago".
func ParseDate(value string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(value))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "":
		return time.Time{}, fmt.Errorf("date is empty")
	case "today", "now":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if m := relativeDate.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q: %w", value, err)
		}
		switch m[2] {
		case "day":
			return today.AddDate(0, 0, -n), nil
		case "week":
			return today.AddDate(0, 0, -7*n), nil
		case "month":
			return today.AddDate(0, -n, 0), nil
		default:
			return today.AddDate(-n, 0, 0), nil
		}
	}

	if t, err := time.ParseInLocation(DateLayout, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		t = t.In(now.Location())
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q, use YYYY-MM-DD or a relative form like \"3 days ago\"", value)
}
