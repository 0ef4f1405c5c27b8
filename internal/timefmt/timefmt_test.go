package timefmt

import (
	"testing"
	"time"
)

func TestLayout(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"%Y%m%d:%H", "20060102:15"},
		{"%Y-%m-%d %H:%M:%S", "2006-01-02 15:04:05"},
		{"%d.%m.%y %H:%M", "02.01.06 15:04"},
		{"2006-01-02T15", "2006-01-02T15"},
		{"100%%", "100%"},
	}
	for _, c := range cases {
		got, err := Layout(c.in)
		if err != nil {
			t.Errorf("Layout(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Layout(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "%Y%", "%Q"} {
		if _, err := Layout(bad); err == nil {
			t.Errorf("Layout(%q) expected error", bad)
		}
	}
}

func TestLayoutFormatsLikeStrftime(t *testing.T) {
	layout, err := Layout("%Y%m%d:%H")
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC)
	if got := ts.Format(layout); got != "20240305:07" {
		t.Fatalf("Format = %q", got)
	}
}
