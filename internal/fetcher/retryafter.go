package fetcher

import (
	"net/http"
	"strconv"
	"time"
)

// parseRetryAfter parses a Retry-After header value: either delta-seconds (a non-negative
// integer) or an HTTP-date (IMF-fixdate and the other formats net/http.ParseTime accepts).
// For the delta-seconds form it returns dur with isDuration=true; for the date form it returns
// the instant in at with isDuration=false; ok is false if the value is absent or unparsable.
func parseRetryAfter(value string) (dur time.Duration, at time.Time, isDuration, ok bool) {
	if value == "" {
		return 0, time.Time{}, false, false
	}
	if seconds, err := strconv.ParseUint(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, time.Time{}, true, true
	}
	if t, err := http.ParseTime(value); err == nil {
		return 0, t, false, true
	}
	return 0, time.Time{}, false, false
}

// RetryAfterDuration computes the effective pre-retry wait from a 429 response's Retry-After
// header, falling back to defaultWait when the header is absent or unparsable. Negative
// durations (an HTTP-date already in the past) clamp to zero. Exported so other retrying
// callers (store.HTTPSink's POST sink) can reuse the identical parsing rules.
func RetryAfterDuration(header string, now time.Time, defaultWait time.Duration) time.Duration {
	dur, at, isDuration, ok := parseRetryAfter(header)
	if !ok {
		return defaultWait
	}
	if isDuration {
		return dur
	}
	remaining := at.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
