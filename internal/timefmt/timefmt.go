// Package timefmt translates strftime-style date patterns (as written in
// config files, e.g. "%Y%m%d:%H") into Go reference layouts.
package timefmt

import (
	"fmt"
	"strings"
)

var directives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'p': "PM",
	'z': "-0700",
	'%': "%",
}

// Layout converts pattern into a Go time layout. A pattern without any '%'
// is assumed to already be a Go layout and is returned unchanged.
func Layout(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("empty date format")
	}
	if !strings.Contains(pattern, "%") {
		return pattern, nil
	}

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(pattern) {
			return "", fmt.Errorf("date format %q ends with a dangling %%", pattern)
		}
		i++
		layout, ok := directives[pattern[i]]
		if !ok {
			return "", fmt.Errorf("date format %q: unsupported directive %%%c", pattern, pattern[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}
