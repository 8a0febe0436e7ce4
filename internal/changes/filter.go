package changes

import "time"

// SinceFilter reports whether a document with the given modification time should be kept,
// given an optional "since" marker. A zero since value keeps everything.
func SinceFilter(since time.Time) func(modified time.Time) bool {
	if since.IsZero() {
		return func(time.Time) bool { return true }
	}
	return func(modified time.Time) bool {
		return !modified.Before(since)
	}
}
