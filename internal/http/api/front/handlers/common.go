package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/router-for-me/StationPortal/internal/report"
)

// parseYear accepts four-digit calendar years.
func parseYear(raw string) (int, bool) {
	year, errParse := strconv.Atoi(strings.TrimSpace(raw))
	if errParse != nil || year < 1900 || year > 9999 {
		return 0, false
	}
	return year, true
}

// optionalInt parses an optional integer query value. Empty yields 0.
func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// DateRangeMessage returns the client message for a report.ParseRange error.
func DateRangeMessage(err error) string {
	switch {
	case errors.Is(err, report.ErrInvalidStartDate):
		return "Invalid start date format. Use YYYY-MM-DD"
	case errors.Is(err, report.ErrInvalidEndDate):
		return "Invalid end date format. Use YYYY-MM-DD"
	case errors.Is(err, report.ErrInvertedRange):
		return "end_date must not be before start_date"
	default:
		return "Invalid date range"
	}
}
