package ghutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365*day + 6*time.Hour
)

var durationUnits = map[string]time.Duration{
	"":             time.Millisecond,
	"ms":           time.Millisecond,
	"msec":         time.Millisecond,
	"msecs":        time.Millisecond,
	"millisecond":  time.Millisecond,
	"milliseconds": time.Millisecond,
	"s":            time.Second,
	"sec":          time.Second,
	"secs":         time.Second,
	"second":       time.Second,
	"seconds":      time.Second,
	"m":            time.Minute,
	"min":          time.Minute,
	"mins":         time.Minute,
	"minute":       time.Minute,
	"minutes":      time.Minute,
	"h":            time.Hour,
	"hr":           time.Hour,
	"hrs":          time.Hour,
	"hour":         time.Hour,
	"hours":        time.Hour,
	"d":            day,
	"day":          day,
	"days":         day,
	"w":            week,
	"week":         week,
	"weeks":        week,
	"y":            year,
	"yr":           year,
	"yrs":          year,
	"year":         year,
	"years":        year,
}

// ParseDuration parses human readable durations like "3.5 days", "1 day",
// "12h" or "90 min".
// A number without unit is interpreted as milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, fmt.Errorf("duration is empty")
	}

	idx := strings.IndexFunc(str, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-'
	})

	numStr, unitStr := str, ""
	if idx >= 0 {
		numStr = str[:idx]
		unitStr = strings.ToLower(strings.TrimSpace(str[idx:]))
	}

	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	unit, ok := durationUnits[unitStr]
	if !ok {
		return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, unitStr)
	}

	d := val * float64(unit)
	if math.IsNaN(d) || d >= math.MaxInt64 || d <= math.MinInt64 {
		return 0, fmt.Errorf("invalid duration %q: out of range", s)
	}

	return time.Duration(d), nil
}
