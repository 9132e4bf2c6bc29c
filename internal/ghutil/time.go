package ghutil

import "time"

// FirstValidTimestamp returns the first candidate that can be parsed as
// RFC3339 timestamp.
// Empty candidates are skipped. If none is valid, false is returned.
func FirstValidTimestamp(candidates ...string) (time.Time, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, c)
		if err == nil {
			return ts, true
		}
	}

	return time.Time{}, false
}
