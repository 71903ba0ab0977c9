// Package timeframe
package timeframe

import (
	"fmt"
	"time"
)

// ErrInvalidTimeframe is returned for any timeframe outside the supported set.
// Arbitrary durations are a configuration mistake, not a runtime condition.
type ErrInvalidTimeframe struct {
	Timeframe string
}

func (e ErrInvalidTimeframe) Error() string {
	return fmt.Sprintf("invalid timeframe %q (supported: %v)", e.Timeframe, GetSupportedTimeframes())
}

// ParseTimeframe parses a timeframe string (e.g., "5s", "1m") to time.Duration
func ParseTimeframe(timeframe string) (time.Duration, error) {
	switch timeframe {
	case "1s":
		return time.Second, nil
	case "5s":
		return 5 * time.Second, nil
	case "10s":
		return 10 * time.Second, nil
	case "30s":
		return 30 * time.Second, nil
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	default:
		return 0, ErrInvalidTimeframe{Timeframe: timeframe}
	}
}

// GetTimeframeDuration returns the duration for a given timeframe, 0 if unsupported
func GetTimeframeDuration(timeframe string) time.Duration {
	d, err := ParseTimeframe(timeframe)
	if err != nil {
		return 0
	}
	return d
}

// GetSupportedTimeframes returns all supported timeframes
func GetSupportedTimeframes() []string {
	return []string{"1s", "5s", "10s", "30s", "1m", "5m"}
}

// IsValidTimeframe checks if a timeframe is supported
func IsValidTimeframe(timeframe string) bool {
	return GetTimeframeDuration(timeframe) > 0
}

// Bucket floors t to the start of its bucket for the given duration.
// Buckets are left-closed/right-open: [start, start+d).
func Bucket(t time.Time, d time.Duration) time.Time {
	ms := t.UnixMilli()
	dms := d.Milliseconds()
	start := ms - (ms % dms)
	if ms < 0 && ms%dms != 0 {
		start -= dms
	}
	return time.UnixMilli(start).UTC()
}
