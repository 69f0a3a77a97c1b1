// Package canonical provides timestamp parsing shared by the recency cache
// and the freshness bookkeeping.
package canonical

import (
	"errors"
	"strings"
	"time"
)

// ErrUnparseableTimestamp is returned when a timestamp matches no accepted layout.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// Accepted timestamp layouts, tried in order. Feed timestamps are normally
// RFC 3339 with a Z designator, but older uploaders emit bare local-looking
// timestamps without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a feed timestamp.
//
// A trailing "Z" and an explicit "+00:00" offset parse to the same instant,
// so writers that normalize differently still agree on ordering. Offsetless
// timestamps are read as UTC, matching how the database compares the stored
// text form.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, ErrUnparseableTimestamp
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, ErrUnparseableTimestamp
}
