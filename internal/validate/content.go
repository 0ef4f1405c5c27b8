package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	hoursPerDay      = 24
	msgOnlyHeaderRow = "File contains only a header row. No data rows found."
	dateLayout       = "2006-01-02"
)

// daySet tracks the hours observed for one civil date and the first and last
// line any of its timestamps occurred on.
type daySet struct {
	date  time.Time
	hours [hoursPerDay]bool
	first int
	last  int
}

func (d *daySet) observe(hour, line int) {
	d.hours[hour] = true
	if d.first == 0 || line < d.first {
		d.first = line
	}
	if line > d.last {
		d.last = line
	}
}

func (d *daySet) missing() []int {
	var out []int
	for h, ok := range d.hours {
		if !ok {
			out = append(out, h)
		}
	}
	return out
}

// hasZone reports whether a Go layout parses a UTC offset or zone name.
func hasZone(layout string) bool {
	return strings.Contains(layout, "-07") || strings.Contains(layout, "Z07") || strings.Contains(layout, "MST")
}

// Content scans the data rows for unparseable timestamps and values,
// duplicate timestamps, days with missing hours and gaps between days.
// layout is a Go time layout for column 1; decimalSeparator is the
// separator used in column 2.
func Content(t Table, layout, decimalSeparator string) Report {
	if len(t) == 0 {
		return Report{ContentErrors: []string{msgEmptyFile}}
	}

	var (
		errs       []string
		hasData    bool
		provenance = make(map[time.Time][]int)
		days       = make(map[time.Time]*daySet)
		dayOrder   []*daySet
		zoned      = hasZone(layout)
	)

	for _, row := range t[1:] {
		if row.Blank() {
			continue
		}
		hasData = true

		parsed, err := time.ParseInLocation(layout, row.Fields[0], time.UTC)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Row %d: Invalid datetime format in column 1", row.Line))
			continue
		}
		ts := time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
			parsed.Hour(), parsed.Minute(), parsed.Second(), parsed.Nanosecond(), time.UTC)

		// Zoned timestamps are distinct instants even when the wall clock
		// repeats, as it does for the October hour 2.
		key := ts
		if zoned {
			key = parsed.UTC()
		}
		lines := append(provenance[key], row.Line)
		provenance[key] = lines
		if len(lines) > 1 {
			errs = append(errs, fmt.Sprintf("Row %d: Duplicate timestamp found: %s (also found at row %d)", row.Line, row.Fields[0], lines[0]))
		}

		date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		ds, ok := days[date]
		if !ok {
			ds = &daySet{date: date}
			days[date] = ds
			dayOrder = append(dayOrder, ds)
		}
		ds.observe(ts.Hour(), row.Line)

		if !validPower(row.Fields, decimalSeparator) {
			errs = append(errs, fmt.Sprintf("Row %d: Invalid power value in column 2", row.Line))
		}
	}

	if !hasData {
		return Report{ContentErrors: append(errs, msgOnlyHeaderRow)}
	}

	for _, ds := range dayOrder {
		if missing := ds.missing(); len(missing) > 0 {
			errs = append(errs, fmt.Sprintf("Missing hours %s for date %s (between rows %d and %d)",
				formatHours(missing), ds.date.Format(dateLayout), ds.first, ds.last))
		}
	}

	if len(dayOrder) > 1 {
		sorted := make([]*daySet, len(dayOrder))
		copy(sorted, dayOrder)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].date.Before(sorted[j].date) })

		for i := 0; i+1 < len(sorted); i++ {
			cur, next := sorted[i], sorted[i+1]
			if !next.date.Equal(cur.date.AddDate(0, 0, 1)) {
				errs = append(errs, fmt.Sprintf("Gap in dates between %s and %s (between rows %d and %d)",
					cur.date.Format(dateLayout), next.date.Format(dateLayout), cur.last, next.first))
			}
		}
	}

	return Report{ContentErrors: errs}
}

func validPower(fields []string, decimalSeparator string) bool {
	if len(fields) < 2 {
		return false
	}
	v := strings.TrimSpace(strings.Trim(fields[1], `"`))
	if decimalSeparator != "" && decimalSeparator != "." {
		v = strings.ReplaceAll(v, decimalSeparator, ".")
	}
	_, err := decimal.NewFromString(v)
	return err == nil
}

func formatHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = strconv.Itoa(h)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
