package utils

import "time"

// Now returns the current time in UTC, truncated to microseconds so values
// survive a postgres timestamp round-trip unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
