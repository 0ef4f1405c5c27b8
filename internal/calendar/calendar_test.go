package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock(year int, month time.Month, day int) Clock {
	return func() time.Time {
		return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.July, 31},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, c := range cases {
		if got := DaysInMonth(c.year, c.month); got != c.want {
			t.Errorf("DaysInMonth(%d, %d) = %d, want %d", c.year, c.month, got, c.want)
		}
	}
}

func TestHoursCapacity(t *testing.T) {
	cases := []struct {
		key  MonthKey
		want int
	}{
		{MonthKey{2024, time.January}, 744},
		{MonthKey{2024, time.April}, 720},
		{MonthKey{2024, time.February}, 696},
		{MonthKey{2023, time.February}, 672},
	}
	for _, c := range cases {
		if got := HoursCapacity(c.key); got != c.want {
			t.Errorf("HoursCapacity(%s) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestMonthKeySuccessorWraps(t *testing.T) {
	dec := MonthKey{2023, time.December}
	if got, want := dec.Next(), (MonthKey{2024, time.January}); got != want {
		t.Fatalf("Next() = %s, want %s", got, want)
	}
	jan := MonthKey{2024, time.January}
	if got, want := jan.Prev(), dec; got != want {
		t.Fatalf("Prev() = %s, want %s", got, want)
	}
}

func TestParseMonthKey(t *testing.T) {
	if _, err := ParseMonthKey("2024-13"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for month 13, got %v", err)
	}
	if _, err := ParseMonthKey("2024-1"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for single digit month, got %v", err)
	}
	k, err := ParseMonthKey("2024-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.String() != "2024-06" {
		t.Fatalf("String() = %q", k.String())
	}
}

func TestParseRange(t *testing.T) {
	now := fixedClock(2024, time.August, 15)

	r, err := ParseRange("  2024-01 ;2024-06  ", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Range{Start: MonthKey{2024, time.January}, End: MonthKey{2024, time.June}}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("ParseRange mismatch (-want +got):\n%s", diff)
	}

	// The current month itself is not in the future.
	if _, err := ParseRange("2024-08; 2024-08", now); err != nil {
		t.Fatalf("current month should be accepted: %v", err)
	}

	errCases := []struct {
		in   string
		want error
	}{
		{"2024-01", ErrFormat},
		{"2024-01; 2024-6", ErrFormat},
		{"2024-00; 2024-06", ErrFormat},
		{"2024-01; 2024-06; 2024-07", ErrFormat},
		{"2024-06; 2024-01", ErrOrder},
		{"2024-06; 2024-09", ErrFutureDate},
	}
	for _, c := range errCases {
		if _, err := ParseRange(c.in, now); !errors.Is(err, c.want) {
			t.Errorf("ParseRange(%q) error = %v, want %v", c.in, err, c.want)
		}
	}
}

func TestEnumerate(t *testing.T) {
	cases := []struct {
		start, end MonthKey
	}{
		{MonthKey{2024, time.March}, MonthKey{2024, time.March}},
		{MonthKey{2023, time.November}, MonthKey{2024, time.February}},
		{MonthKey{2019, time.January}, MonthKey{2024, time.December}},
	}
	for _, c := range cases {
		got := Enumerate(c.start, c.end)
		wantLen := (c.end.Year*12 + int(c.end.Month)) - (c.start.Year*12 + int(c.start.Month)) + 1
		if len(got) != wantLen {
			t.Fatalf("Enumerate(%s, %s) len = %d, want %d", c.start, c.end, len(got), wantLen)
		}
		if got[0] != c.start || got[len(got)-1] != c.end {
			t.Fatalf("Enumerate(%s, %s) bounds = %s..%s", c.start, c.end, got[0], got[len(got)-1])
		}
		for i := 1; i < len(got); i++ {
			if !got[i-1].Before(got[i]) {
				t.Fatalf("Enumerate not strictly ascending at %d: %s, %s", i, got[i-1], got[i])
			}
		}
		if r := (Range{Start: c.start, End: c.end}); r.Len() != wantLen {
			t.Fatalf("Range.Len() = %d, want %d", r.Len(), wantLen)
		}
	}

	if got := Enumerate(MonthKey{2024, time.May}, MonthKey{2024, time.April}); got != nil {
		t.Fatalf("expected nil for reversed bounds, got %v", got)
	}
}

func TestEnumerateYearBoundary(t *testing.T) {
	got := Enumerate(MonthKey{2023, time.November}, MonthKey{2024, time.February})
	strs := make([]string, 0, len(got))
	for _, k := range got {
		strs = append(strs, k.String())
	}
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	if diff := cmp.Diff(want, strs); diff != "" {
		t.Fatalf("Enumerate mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMonthPrefix(t *testing.T) {
	cases := []struct {
		in     string
		want   MonthKey
		wantOK bool
	}{
		{"2024-05-Verbrauch.json", MonthKey{2024, time.May}, true},
		{"2024-05-01T00:00:00.000+02:00", MonthKey{2024, time.May}, true},
		{"2024-13-consumption.csv", MonthKey{}, false},
		{"year-consumption.csv", MonthKey{}, false},
	}
	for _, c := range cases {
		got, ok := ParseMonthPrefix(c.in)
		if ok != c.wantOK || got != c.want {
			t.Errorf("ParseMonthPrefix(%q) = %s, %v; want %s, %v", c.in, got, ok, c.want, c.wantOK)
		}
	}
}
