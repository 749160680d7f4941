package postgres

import "time"

// secondsToDuration converts a stored offset-from-midnight column (plain
// integer seconds, the natural Postgres representation of a time.Duration)
// back into a time.Duration.
func secondsToDuration(secs int64) time.Duration {
	return time.Duration(secs) * time.Second
}
