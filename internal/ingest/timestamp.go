package ingest

import (
	"fmt"
	"strings"
	"time"
)

// TimestampPrecision selects how device epoch-millisecond values are kept.
type TimestampPrecision int

const (
	// PrecisionSecond drops the sub-second part, matching rows stored by the
	// first generation of the loader.
	PrecisionSecond TimestampPrecision = iota
	PrecisionMillisecond
)

// ParseTimestampPrecision accepts "second" or "millisecond". Empty means second.
func ParseTimestampPrecision(s string) (TimestampPrecision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "second", "s":
		return PrecisionSecond, nil
	case "millisecond", "ms":
		return PrecisionMillisecond, nil
	default:
		return PrecisionSecond, fmt.Errorf("unknown timestamp precision %q", s)
	}
}

func (p TimestampPrecision) String() string {
	if p == PrecisionMillisecond {
		return "millisecond"
	}
	return "second"
}

// Instant converts a millisecond epoch to a UTC instant at precision p.
func (p TimestampPrecision) Instant(epochMs int64) time.Time {
	t := time.UnixMilli(epochMs).UTC()
	if p == PrecisionMillisecond {
		return t
	}
	return t.Truncate(time.Second)
}
