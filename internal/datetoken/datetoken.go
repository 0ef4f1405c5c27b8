// Package datetoken normalizes date strings into canonical offset-carrying
// timestamps and converts them to and from the base64 cursor tokens used by
// the consumption API.
package datetoken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/getverbrauch/consumption-export/internal/calendar"
	"github.com/getverbrauch/consumption-export/internal/timezone"
)

// ErrUnparseableDate is returned when no supported date shape or YYYY-MM
// prefix can be recovered from the input.
var ErrUnparseableDate = errors.New("unparseable date")

// CanonicalLayout renders millisecond precision and a numeric offset. UTC is
// written as +00:00, never Z.
const CanonicalLayout = "2006-01-02T15:04:05.000-07:00"

var (
	// YYYY-MM[-DD[THH:MM:SS[.fff]]][Z|±HH:MM]
	datePattern = regexp.MustCompile(
		`^(\d{4})-(\d{2})(?:-(\d{2})(?:T(\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,9}))?)?)?(Z|[+-]\d{2}:\d{2})?$`)
	tokenAlphabet = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

// CanonicalTimestamp is an instant with millisecond precision and an explicit offset.
type CanonicalTimestamp struct {
	Time time.Time
}

// String renders the timestamp in CanonicalLayout.
func (c CanonicalTimestamp) String() string {
	return c.Time.Format(CanonicalLayout)
}

// Month returns the month of the timestamp's civil date.
func (c CanonicalTimestamp) Month() calendar.MonthKey {
	return calendar.MonthOf(c.Time)
}

// Canonicalize accepts YYYY-MM, YYYY-MM-DD, YYYY-MM-DDTHH:MM:SS with optional
// fractional seconds, each optionally followed by Z or ±HH:MM. Missing parts
// default to the first day and midnight. Without an explicit offset the
// German offset of the resolved civil date is applied. When no shape matches,
// a leading YYYY-MM is used as the first of that month.
func Canonicalize(raw string) (CanonicalTimestamp, error) {
	m := datePattern.FindStringSubmatch(raw)
	if m == nil {
		k, ok := calendar.ParseMonthPrefix(raw)
		if !ok {
			return CanonicalTimestamp{}, fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
		}
		return withGermanOffset(k.Start(time.UTC)), nil
	}

	num := func(s string, def int) int {
		if s == "" {
			return def
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	year, month, day := num(m[1], 0), num(m[2], 0), num(m[3], 1)
	hour, minute, sec := num(m[4], 0), num(m[5], 0), num(m[6], 0)
	nsec := fractionToNanos(m[7])

	civil := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, time.UTC)
	if civil.Year() != year || int(civil.Month()) != month || civil.Day() != day ||
		civil.Hour() != hour || civil.Minute() != minute || civil.Second() != sec {
		return CanonicalTimestamp{}, fmt.Errorf("%w: %q is not a real date", ErrUnparseableDate, raw)
	}
	civil = civil.Truncate(time.Millisecond)

	if m[8] == "" {
		return withGermanOffset(civil), nil
	}

	loc, err := parseOffset(m[8])
	if err != nil {
		return CanonicalTimestamp{}, fmt.Errorf("%w: %q: %v", ErrUnparseableDate, raw, err)
	}
	return CanonicalTimestamp{Time: time.Date(civil.Year(), civil.Month(), civil.Day(),
		civil.Hour(), civil.Minute(), civil.Second(), civil.Nanosecond(), loc)}, nil
}

func withGermanOffset(civil time.Time) CanonicalTimestamp {
	loc := timezone.Location(civil)
	return CanonicalTimestamp{Time: time.Date(civil.Year(), civil.Month(), civil.Day(),
		civil.Hour(), civil.Minute(), civil.Second(), civil.Nanosecond(), loc)}
}

func fractionToNanos(frac string) int {
	if frac == "" {
		return 0
	}
	for len(frac) < 9 {
		frac += "0"
	}
	n, _ := strconv.Atoi(frac)
	return n
}

func parseOffset(s string) (*time.Location, error) {
	if s == "Z" {
		return time.FixedZone("", 0), nil
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, err
	}
	minutes, err := strconv.Atoi(s[4:6])
	if err != nil {
		return nil, err
	}
	if hours > 23 || minutes > 59 {
		return nil, fmt.Errorf("offset %s out of range", s)
	}
	secs := hours*3600 + minutes*60
	if s[0] == '-' {
		secs = -secs
	}
	return time.FixedZone("", secs), nil
}

// EncodeTransportToken canonicalizes raw and base64-encodes the result for
// use as the API "after" cursor.
func EncodeTransportToken(raw string) (string, error) {
	ts, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return Encode(ts), nil
}

// Encode base64-encodes the canonical string form of ts.
func Encode(ts CanonicalTimestamp) string {
	return base64.StdEncoding.EncodeToString([]byte(ts.String()))
}

// DecodeMonthKey recovers the month from either a base64 cursor token or a
// plain date string. Inputs made only of base64 characters are decoded first;
// if that does not yield a month, the input itself is searched for a YYYY-MM
// prefix.
func DecodeMonthKey(token string) (calendar.MonthKey, error) {
	if tokenAlphabet.MatchString(token) {
		if decoded, err := base64.StdEncoding.DecodeString(token); err == nil && utf8.Valid(decoded) {
			if k, ok := calendar.ParseMonthPrefix(string(decoded)); ok {
				return k, nil
			}
		}
	}
	if k, ok := calendar.ParseMonthPrefix(token); ok {
		return k, nil
	}
	return calendar.MonthKey{}, fmt.Errorf("%w: no year-month in %q", ErrUnparseableDate, token)
}
