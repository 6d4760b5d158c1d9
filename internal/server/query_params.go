package server

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	errInvalidID   = errors.New("invalid_id")
	errInvalidDate = errors.New("invalid_date")
)

// parseOptionalID treats blank input as absent. Zero is never a valid id.
func parseOptionalID(value string) (*snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return nil, errInvalidID
	}
	return &id, nil
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// Timestamps keep their instant and are converted to UTC.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if day, err := time.ParseInLocation(time.DateOnly, value, time.UTC); err == nil {
		return &day, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errInvalidDate
	}
	ts = ts.UTC()
	return &ts, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
