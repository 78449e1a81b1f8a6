package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// DateOnly is a calendar date with no time-of-day and no timezone.
// Parsing reads the date component of the input directly, so an ISO
// timestamp like "2025-03-10T00:00:00.000Z" stays on March 10 regardless
// of the host timezone.
type DateOnly struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDateOnly builds a DateOnly from its components.
func NewDateOnly(year int, month time.Month, day int) DateOnly {
	return DateOnly{Year: year, Month: month, Day: day}
}

// DateOf extracts the calendar day of t in t's own location.
func DateOf(t time.Time) DateOnly {
	y, m, d := t.Date()
	return DateOnly{Year: y, Month: m, Day: d}
}

// Today returns the current calendar day on the server clock.
func Today() DateOnly {
	return DateOf(time.Now())
}

// ParseDateOnly accepts "2006-01-02" or a full ISO-8601 timestamp and
// keeps only the date component.
func ParseDateOnly(value string) (DateOnly, error) {
	raw := strings.TrimSpace(value)
	if idx := strings.IndexAny(raw, "T "); idx >= 0 {
		raw = raw[:idx]
	}
	t, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return DateOnly{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date is unset.
func (d DateOnly) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String renders the date as "2006-01-02".
func (d DateOnly) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare orders two dates: -1 when d is earlier, 0 when equal, 1 when later.
func (d DateOnly) Compare(other DateOnly) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d falls before other.
func (d DateOnly) Before(other DateOnly) bool { return d.Compare(other) < 0 }

// After reports whether d falls after other.
func (d DateOnly) After(other DateOnly) bool { return d.Compare(other) > 0 }

// Equal reports whether both values name the same calendar day.
func (d DateOnly) Equal(other DateOnly) bool { return d.Compare(other) == 0 }

// AddDays returns the date shifted by the given number of days.
func (d DateOnly) AddDays(days int) DateOnly {
	return DateOf(d.midnightUTC().AddDate(0, 0, days))
}

// Weekday returns the day of week.
func (d DateOnly) Weekday() time.Weekday {
	return d.midnightUTC().Weekday()
}

func (d DateOnly) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MarshalJSON encodes the date as a quoted "2006-01-02" string.
func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts quoted date or timestamp strings.
func (d *DateOnly) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*d = DateOnly{}
		return nil
	}
	parsed, err := ParseDateOnly(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer for DATE columns.
func (d DateOnly) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner. Driver DATE values arrive as time.Time;
// the calendar day is read in the value's own location so it never
// shifts across midnight.
func (d *DateOnly) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = DateOnly{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		parsed, err := ParseDateOnly(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDateOnly(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("unsupported date scan type %T", src)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
