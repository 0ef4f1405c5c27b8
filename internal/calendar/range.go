package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrFormat is returned when a month token is not a valid YYYY-MM month.
	ErrFormat = errors.New("invalid month format")
	// ErrOrder is returned when a range ends before it starts.
	ErrOrder = errors.New("end month before start month")
	// ErrFutureDate is returned when a range ends after the current month.
	ErrFutureDate = errors.New("end month is in the future")
)

// RangeDelimiter separates the two month tokens of a range, e.g. "2024-01; 2024-06".
const RangeDelimiter = ";"

// Clock supplies the current time. Range parsing compares against it so
// that callers (and tests) decide what "now" means.
type Clock func() time.Time

// Range is an inclusive span of months.
type Range struct {
	Start MonthKey
	End   MonthKey
}

// ParseRange parses "YYYY-MM; YYYY-MM". The end month must not precede the
// start and must not lie after the month of now().
func ParseRange(text string, now Clock) (Range, error) {
	parts := strings.Split(text, RangeDelimiter)
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: expected two months separated by %q, got %q", ErrFormat, RangeDelimiter, text)
	}

	start, err := ParseMonthKey(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("start of range: %w", err)
	}
	end, err := ParseMonthKey(strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("end of range: %w", err)
	}

	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: %s is before %s", ErrOrder, end, start)
	}

	if now == nil {
		now = time.Now
	}
	if current := MonthOf(now()); end.After(current) {
		return Range{}, fmt.Errorf("%w: %s is after %s", ErrFutureDate, end, current)
	}

	return Range{Start: start, End: end}, nil
}

// Months enumerates the range, see Enumerate.
func (r Range) Months() []MonthKey {
	return Enumerate(r.Start, r.End)
}

// Len is the number of months covered by the range.
func (r Range) Len() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.index() - r.Start.index() + 1
}

// String renders the range in the same form ParseRange accepts.
func (r Range) String() string {
	return r.Start.String() + RangeDelimiter + " " + r.End.String()
}

// Enumerate returns every month from start to end inclusive, ascending.
// It returns nil when end precedes start.
func Enumerate(start, end MonthKey) []MonthKey {
	if end.Before(start) {
		return nil
	}
	months := make([]MonthKey, 0, end.index()-start.index()+1)
	for k := start; !k.After(end); k = k.Next() {
		months = append(months, k)
	}
	return months
}
