package util

import (
	"strconv"
	"time"
)

// Source files carry timestamps in several encodings depending on the
// writing version: RFC3339 with or without sub-second precision, a bare
// datetime without zone, or epoch seconds/milliseconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a timestamp string leniently. The second return
// value reports whether parsing succeeded.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochToTime(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(int64(f)), true
	}
	return time.Time{}, false
}

// ParseTimestampValue parses a timestamp from a decoded JSON value, which
// may be a string in any supported layout or a numeric epoch.
func ParseTimestampValue(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		return ParseTimestamp(x)
	case float64:
		return epochToTime(int64(x)), true
	case int64:
		return epochToTime(x), true
	default:
		return time.Time{}, false
	}
}

// epochToTime interprets an integer as epoch milliseconds when it is too
// large to be a plausible epoch-seconds value.
func epochToTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
