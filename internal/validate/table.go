package validate

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is one CSV record and the 1-based line it started on.
type Row struct {
	Line   int
	Fields []string
}

// Blank reports whether the row carried no fields at all.
func (r Row) Blank() bool {
	return len(r.Fields) == 0
}

// Table is a parsed export. The first row is the header.
type Table []Row

// TableFromRecords numbers records sequentially from line 1. An empty record
// stands for a blank line.
func TableFromRecords(records [][]string) Table {
	t := make(Table, 0, len(records))
	for i, rec := range records {
		t = append(t, Row{Line: i + 1, Fields: rec})
	}
	return t
}

// ReadTable parses r as delimiter-separated values. Rows keep their physical
// line numbers. Empty lines, which the csv reader drops, come back as blank
// rows so they are checked like any other short row.
func ReadTable(r io.Reader, delimiter rune) (Table, error) {
	lc := &lineCounter{r: r}
	cr := csv.NewReader(lc)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		t    Table
		last int // last physical line consumed by a record
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t.blanks(last+1, lc.lines()+1), nil
		}
		if err != nil {
			return t, err
		}
		line, _ := cr.FieldPos(0)
		t = t.blanks(last+1, line)
		t = append(t, Row{Line: line, Fields: rec})

		end, _ := cr.FieldPos(len(rec) - 1)
		last = end + strings.Count(rec[len(rec)-1], "\n")
	}
}

// blanks appends a blank row for every line in [from, to).
func (t Table) blanks(from, to int) Table {
	for n := from; n < to; n++ {
		t = append(t, Row{Line: n})
	}
	return t
}

// lineCounter counts the physical lines read through it.
type lineCounter struct {
	r        io.Reader
	newlines int
	last     byte
	read     bool
}

func (c *lineCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.newlines += bytes.Count(p[:n], []byte{'\n'})
		c.last = p[n-1]
		c.read = true
	}
	return n, err
}

// lines returns the number of lines seen. A final line without a
// terminating newline still counts.
func (c *lineCounter) lines() int {
	if c.read && c.last != '\n' {
		return c.newlines + 1
	}
	return c.newlines
}
