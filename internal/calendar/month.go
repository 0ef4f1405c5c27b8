package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// maxPageSize is the largest "first" value the consumption API accepts.
const maxPageSize = 744

var (
	monthTokenPattern  = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	monthPrefixPattern = regexp.MustCompile(`^(\d{4})-(\d{2})`)
)

// MonthKey identifies a calendar month. Month is always within [1,12].
type MonthKey struct {
	Year  int
	Month time.Month
}

// NewMonthKey builds a MonthKey, rejecting months outside [1,12].
func NewMonthKey(year int, month time.Month) (MonthKey, error) {
	if month < time.January || month > time.December {
		return MonthKey{}, fmt.Errorf("%w: month %d out of range", ErrFormat, month)
	}
	return MonthKey{Year: year, Month: month}, nil
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses a strict YYYY-MM token.
func ParseMonthKey(s string) (MonthKey, error) {
	m := monthTokenPattern.FindStringSubmatch(s)
	if m == nil {
		return MonthKey{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrFormat, s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return NewMonthKey(year, time.Month(month))
}

// ParseMonthPrefix extracts a leading YYYY-MM from s, as found at the start of
// timestamps and snapshot file names. ok is false if s has no such prefix or
// the month is out of range.
func ParseMonthPrefix(s string) (k MonthKey, ok bool) {
	m := monthPrefixPattern.FindStringSubmatch(s)
	if m == nil {
		return MonthKey{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	k, err := NewMonthKey(year, time.Month(month))
	return k, err == nil
}

// String renders the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// index is a strictly increasing ordinal over months.
func (k MonthKey) index() int {
	return k.Year*12 + int(k.Month) - 1
}

func fromIndex(i int) MonthKey {
	return MonthKey{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// Next returns the following month, wrapping December into January.
func (k MonthKey) Next() MonthKey {
	return fromIndex(k.index() + 1)
}

// Prev returns the preceding month, wrapping January into December.
func (k MonthKey) Prev() MonthKey {
	return fromIndex(k.index() - 1)
}

// Compare returns -1, 0 or +1.
func (k MonthKey) Compare(o MonthKey) int {
	switch a, b := k.index(), o.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether k is strictly earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	return k.Compare(o) < 0
}

// After reports whether k is strictly later than o.
func (k MonthKey) After(o MonthKey) bool {
	return k.Compare(o) > 0
}

// Start returns midnight of the first day of the month in loc.
func (k MonthKey) Start(loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc)
}

// Days returns the number of days in the month.
func (k MonthKey) Days() int {
	return DaysInMonth(k.Year, k.Month)
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in a given month for a specific year.
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// HoursCapacity is the number of hourly records to request for a month,
// capped at the API page size.
func HoursCapacity(k MonthKey) int {
	return min(k.Days()*24, maxPageSize)
}
