package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/wako-events/internal/event"
	"golang.org/x/text/width"
)

var (
	rangePattern     = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*\.\.\s*(\d{4}-\d{2}-\d{2})$`)
	dayPattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearMonthPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	monthPattern     = regexp.MustCompile(`^(\d{1,2})月$`)
)

// ParseDateRange parses a date range string into start and end dates.
//
// Supported formats:
//   - "2025-03-01..2025-03-15" - Inclusive range
//   - "2025-03-01" - Single day
//   - "2025-03" - Entire month
//   - "3月" - Entire month; the year is inferred from now
//
// For "3月" a month earlier than now's month is taken to be next year.
// Returns (dateFrom, dateTo, error) as UTC midnights.
func ParseDateRange(input string, now time.Time) (*time.Time, *time.Time, error) {
	input = strings.TrimSpace(width.Fold.String(input))
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if m := rangePattern.FindStringSubmatch(input); m != nil {
		from, err := parseDay(m[1])
		if err != nil {
			return nil, nil, err
		}
		to, err := parseDay(m[2])
		if err != nil {
			return nil, nil, err
		}
		if from.After(to) {
			return nil, nil, fmt.Errorf("start date must be before end date")
		}
		return &from, &to, nil
	}

	if dayPattern.MatchString(input) {
		day, err := parseDay(input)
		if err != nil {
			return nil, nil, err
		}
		to := day
		return &day, &to, nil
	}

	if m := yearMonthPattern.FindStringSubmatch(input); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return monthRange(year, month)
	}

	if m := monthPattern.FindStringSubmatch(input); m != nil {
		month, _ := strconv.Atoi(m[1])
		return monthRange(getYearForMonth(time.Month(month), now), month)
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use '2025-03-01..2025-03-15', '2025-03-01', '2025-03', or '3月'")
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(event.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %s", s)
	}
	return t, nil
}

func monthRange(year, month int) (*time.Time, *time.Time, error) {
	if month < 1 || month > 12 {
		return nil, nil, fmt.Errorf("invalid month: %d", month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// Last day of month
	to := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return &from, &to, nil
}

// getYearForMonth returns the appropriate year for a given month
// If the month has already passed this year, returns next year
func getYearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}
