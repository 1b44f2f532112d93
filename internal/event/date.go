package event

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// ErrInvalidDate is returned when a raw date cannot be turned into a real
// calendar date.
var ErrInvalidDate = errors.New("invalid date")

// DateLayout is the canonical calendar date layout used in the snapshot.
const DateLayout = "2006-01-02"

// DateFormat identifies the native date representation of a source.
type DateFormat int

const (
	// FormatISO is an already-resolved, zero-padded YYYY-MM-DD date.
	FormatISO DateFormat = iota
	// FormatCompact is YYYYMMDD, as found in data-date attributes.
	FormatCompact
	// FormatSlash is YYYY/M/D with optional zero padding.
	FormatSlash
	// FormatMonthDay is M月D日 without a year.
	FormatMonthDay
)

func (f DateFormat) String() string {
	switch f {
	case FormatISO:
		return "iso"
	case FormatCompact:
		return "compact"
	case FormatSlash:
		return "slash"
	case FormatMonthDay:
		return "month-day"
	default:
		return fmt.Sprintf("DateFormat(%d)", int(f))
	}
}

var (
	compactPattern  = regexp.MustCompile(`^\d{8}$`)
	slashPattern    = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	monthDayPattern = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日$`)
)

// Normalizer converts source-native dates into canonical YYYY-MM-DD strings.
type Normalizer struct {
	// Now supplies the reference time for formats that omit the year.
	// Defaults to time.Now.
	Now func() time.Time

	// RollForward makes a year-less date whose month is earlier than the
	// reference month resolve to the following year instead of the current one.
	RollForward bool
}

// NewNormalizer returns a Normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

func (n *Normalizer) now() time.Time {
	if n == nil || n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// NormalizeDate converts raw in the given format to YYYY-MM-DD.
// No timezone conversion is performed: the result is a calendar date.
func (n *Normalizer) NormalizeDate(raw string, format DateFormat) (string, error) {
	// Full-width digits and slashes show up on Japanese pages.
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" {
		return "", fmt.Errorf("empty %s date: %w", format, ErrInvalidDate)
	}

	var year, month, day int
	switch format {
	case FormatISO:
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return "", fmt.Errorf("parsing %q as %s: %w", raw, format, ErrInvalidDate)
		}
		return t.Format(DateLayout), nil

	case FormatCompact:
		if !compactPattern.MatchString(s) {
			return "", fmt.Errorf("parsing %q as %s: %w", raw, format, ErrInvalidDate)
		}
		year, _ = strconv.Atoi(s[0:4])
		month, _ = strconv.Atoi(s[4:6])
		day, _ = strconv.Atoi(s[6:8])

	case FormatSlash:
		m := slashPattern.FindStringSubmatch(s)
		if m == nil {
			return "", fmt.Errorf("parsing %q as %s: %w", raw, format, ErrInvalidDate)
		}
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])

	case FormatMonthDay:
		m := monthDayPattern.FindStringSubmatch(s)
		if m == nil {
			return "", fmt.Errorf("parsing %q as %s: %w", raw, format, ErrInvalidDate)
		}
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		ref := n.now()
		year = ref.Year()
		// The page never states the year. Without RollForward an event in
		// January listed in December is misdated by a year.
		if n != nil && n.RollForward && month >= 1 && month < int(ref.Month()) {
			year++
		}

	default:
		return "", fmt.Errorf("unknown date format %s: %w", format, ErrInvalidDate)
	}

	return formatCalendarDate(raw, year, month, day)
}

// formatCalendarDate rejects dates that time.Date would silently normalize,
// such as February 30.
func formatCalendarDate(raw string, year, month, day int) (string, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", fmt.Errorf("%q is out of range: %w", raw, ErrInvalidDate)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", fmt.Errorf("%q is not a calendar date: %w", raw, ErrInvalidDate)
	}
	return t.Format(DateLayout), nil
}

// ParseDate parses a canonical YYYY-MM-DD date in loc. It returns the zero
// time if the value is not canonical.
func ParseDate(date string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsValidDate reports whether date is a canonical, real calendar date.
func IsValidDate(date string) bool {
	t, err := time.Parse(DateLayout, date)
	return err == nil && t.Format(DateLayout) == date
}

// FormatDate renders year, month and day as a zero-padded canonical date
// without validating it.
func FormatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
