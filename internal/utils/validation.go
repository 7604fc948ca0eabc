package utils

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used throughout the store.
const DateLayout = "2006-01-02"

var validPriorities = []string{"high", "medium", "low"}

// ValidatePriority checks that priority names one of the known levels.
// An empty string is accepted and means the default.
func ValidatePriority(priority string) error {
	if priority == "" {
		return nil
	}
	for _, p := range validPriorities {
		if strings.EqualFold(p, priority) {
			return nil
		}
	}
	return ErrInvalidPriority(priority)
}

// ValidateTitle trims a title and rejects it when nothing is left.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle()
	}
	return title, nil
}

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// parseRelativeDate parses "today", "tomorrow", "yesterday", "+7d", "-3d",
// "+2w" and "+1m" against now. It returns nil, nil for other formats.
func parseRelativeDate(dateStr string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lower := strings.ToLower(dateStr)

	switch lower {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	case "yesterday":
		t := today.AddDate(0, 0, -1)
		return &t, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return nil, nil
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}
	return &result, nil
}

// ParseDateFlag resolves a --date flag to a YYYY-MM-DD string relative to now.
// An empty input returns "" (clear the date).
func ParseDateFlag(dateStr string, now time.Time) (string, error) {
	if dateStr == "" {
		return "", nil
	}

	t, err := parseRelativeDate(dateStr, now)
	if err != nil {
		return "", err
	}
	if t != nil {
		return t.Format(DateLayout), nil
	}

	parsed, err := time.ParseInLocation(DateLayout, dateStr, now.Location())
	if err != nil {
		return "", ErrInvalidDate(dateStr)
	}
	return parsed.Format(DateLayout), nil
}

// ValidateDateRange checks that an end date is not before a start date.
// Empty dates are considered valid.
func ValidateDateRange(start, end string) error {
	if start == "" || end == "" {
		return nil
	}
	if end < start {
		return errors.New("end date cannot be before start date")
	}
	return nil
}
