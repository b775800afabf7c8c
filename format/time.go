// Package format converts legacy values and rows into target-shaped records.
package format

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// LegacyZone is the wall clock the legacy system stored timestamps in.
var LegacyZone = mustLoad("Europe/London")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// NormalizeLegacyTime reads the wall clock of t as legacy local time and
// returns the matching UTC instant. Non-time values are returned unchanged.
func NormalizeLegacyTime(v any) any {
	switch t := v.(type) {
	case time.Time:
		return legacyToUTC(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		u := legacyToUTC(*t)
		return &u
	}
	return v
}

func legacyToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), LegacyZone).UTC()
}

// DateOrNil parses the date layouts found in legacy documents:
// 14/10/24, 14/10/2024, 14-10-2024, 14-10-24, 2024-10-14, 14 October 2024,
// 14.10.24 and 14.10.2024. An empty string yields nil.
func DateOrNil(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.Contains(s, " ") && len(s) > 10 {
		d, err := time.Parse("2 January 2006", s)
		if err != nil {
			return nil, fmt.Errorf("date %s not in parsable format: %w", s, err)
		}
		return &d, nil
	}

	normalized := strings.NewReplacer("/", "-", ".", "-").Replace(s)
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 || len(parts[2]) > 4 {
		return nil, fmt.Errorf("date %s not in parsable format", s)
	}

	layout := "2-1-06"
	switch {
	case len(parts[0]) == 4:
		layout = "2006-1-2"
	case len(parts[2]) == 4:
		layout = "2-1-2006"
	}

	d, err := time.Parse(layout, normalized)
	if err != nil {
		return nil, fmt.Errorf("date %s not in parsable format: %w", s, err)
	}
	return &d, nil
}

// DateTimeOrNil parses 2006-01-02T15:04:05 timestamps written in legacy
// local time and returns them in UTC.
func DateTimeOrNil(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, LegacyZone)
	if err != nil {
		return nil, fmt.Errorf("datetime %s not in parsable format: %w", s, err)
	}
	t = t.UTC()
	return &t, nil
}
