package common

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// RunTimestampLayout renders run timestamps with microsecond precision and a
// numeric offset, e.g. 2024-08-29T03:11:13.230100+00:00.
const RunTimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// ISOLayout is the second-precision form used for API query parameters and
// persisted watermarks.
const ISOLayout = "2006-01-02T15:04:05-07:00"

var errInvalidTime = errors.New("invalid time format; use RFC3339 or unix seconds")

// ParseTimestamp accepts RFC3339 (with or without fractional seconds), the
// space-separated ISO form and unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errInvalidTime
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errInvalidTime
}

// FormatISO renders t in ISOLayout, keeping sub-second digits when present.
func FormatISO(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(RunTimestampLayout)
	}
	return t.Format(ISOLayout)
}

// FormatRunTimestamp renders a run's logical timestamp for snapshot file names.
func FormatRunTimestamp(t time.Time) string {
	return t.Format(RunTimestampLayout)
}
