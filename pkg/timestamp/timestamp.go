// Package timestamp provides standardized Unix timestamp handling.
//
// All wire-level timestamps in gaze are int64 Unix milliseconds. This
// package is the single conversion point between time.Time and the wire
// representation so that message payloads and metrics agree on precision.
package timestamp

import "time"

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// FromTime converts a time.Time to Unix milliseconds.
// The zero time converts to 0.
func FromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// ToTime converts Unix milliseconds to a time.Time in UTC.
// Zero converts to the zero time.
func ToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// UnixSeconds converts a time.Time to whole Unix seconds. Used where the
// wire contract calls for second precision (process start times).
func UnixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
