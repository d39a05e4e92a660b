package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/poitiers-events/internal/event"
)

var (
	sameMonthRange  = regexp.MustCompile(`(?i)^(\d{1,2})(?:er)?\s*(?:-|au)\s*(\d{1,2})\s+([^\s\d-]+)$`)
	crossMonthRange = regexp.MustCompile(`(?i)^(\d{1,2})(?:er)?\s+([^\s\d-]+)\s*(?:-|au)\s*(\d{1,2})(?:er)?\s+([^\s\d-]+)$`)
	singleMonth     = regexp.MustCompile(`(?i)^([^\s\d-]+)$`)
	isoRange        = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:\s*\.\.\s*(\d{4}-\d{2}-\d{2}))?$`)
)

// ParseDateRange parses a date range string into start and end times.
//
// Supported formats:
//   - "1-15 mars" or "1er au 15 mars" - Same month, different days
//   - "1 mars - 15 avril" - Different months
//   - "mars" - Entire month
//   - "2025-12-01..2025-12-31" or "2025-12-01" - Explicit ISO dates
//
// Month names may be abbreviated or unaccented ("déc", "fevrier"). The year is inferred
// from ref: a month already past this year means next year, and a range whose end month
// precedes its start month ends next year.
//
// The start is at 00:00:00 and the end at 23:59:59 in loc.
func ParseDateRange(input string, ref time.Time, loc *time.Location) (*time.Time, *time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	ref = ref.In(loc)

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if matches := isoRange.FindStringSubmatch(input); matches != nil {
		from, err := time.ParseInLocation("2006-01-02", matches[1], loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date: %s", matches[1])
		}
		end := matches[1]
		if matches[2] != "" {
			end = matches[2]
		}
		toDay, err := time.ParseInLocation("2006-01-02", end, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date: %s", end)
		}
		return bounds(from, toDay)
	}

	if matches := sameMonthRange.FindStringSubmatch(input); matches != nil {
		month, ok := event.FrenchMonths.Lookup(matches[3])
		if !ok {
			return nil, nil, fmt.Errorf("invalid month: %s", matches[3])
		}
		day1, err := parseDay(matches[1])
		if err != nil {
			return nil, nil, err
		}
		day2, err := parseDay(matches[2])
		if err != nil {
			return nil, nil, err
		}

		year := getYearForMonth(month, ref)
		return bounds(
			time.Date(year, month, day1, 0, 0, 0, 0, loc),
			time.Date(year, month, day2, 0, 0, 0, 0, loc),
		)
	}

	if matches := crossMonthRange.FindStringSubmatch(input); matches != nil {
		month1, ok := event.FrenchMonths.Lookup(matches[2])
		if !ok {
			return nil, nil, fmt.Errorf("invalid month: %s", matches[2])
		}
		month2, ok := event.FrenchMonths.Lookup(matches[4])
		if !ok {
			return nil, nil, fmt.Errorf("invalid month: %s", matches[4])
		}
		day1, err := parseDay(matches[1])
		if err != nil {
			return nil, nil, err
		}
		day2, err := parseDay(matches[3])
		if err != nil {
			return nil, nil, err
		}

		year1 := getYearForMonth(month1, ref)
		year2 := year1
		// If month2 < month1, assume month2 is in the next year
		if month2 < month1 {
			year2++
		}
		return bounds(
			time.Date(year1, month1, day1, 0, 0, 0, 0, loc),
			time.Date(year2, month2, day2, 0, 0, 0, 0, loc),
		)
	}

	if matches := singleMonth.FindStringSubmatch(input); matches != nil {
		month, ok := event.FrenchMonths.Lookup(matches[1])
		if !ok {
			return nil, nil, fmt.Errorf("invalid month: %s", matches[1])
		}
		year := getYearForMonth(month, ref)
		from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		// Last day of month
		return bounds(from, time.Date(year, month+1, 0, 0, 0, 0, 0, loc))
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use '1-15 mars', '1 mars - 15 avril', 'mars' or '2025-12-01..2025-12-31'")
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid day: %s", s)
	}
	return day, nil
}

// bounds turns two calendar days into an inclusive range.
func bounds(fromDay, toDay time.Time) (*time.Time, *time.Time, error) {
	to := time.Date(toDay.Year(), toDay.Month(), toDay.Day(), 23, 59, 59, 0, toDay.Location())
	if fromDay.After(to) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return &fromDay, &to, nil
}

// getYearForMonth returns the appropriate year for a given month
// If the month has already passed this year, returns next year
func getYearForMonth(month time.Month, ref time.Time) int {
	year := ref.Year()
	if month < ref.Month() {
		year++
	}
	return year
}
