// Package export turns monthly API snapshots into delimited hourly tables
// and concatenates those tables into one annual file.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/getverbrauch/consumption-export/internal/calendar"
	"github.com/getverbrauch/consumption-export/internal/consumption"
	"github.com/getverbrauch/consumption-export/internal/store"
	"github.com/getverbrauch/consumption-export/internal/timefmt"
)

// ErrNoInputs is returned when a directory holds no files to work on.
var ErrNoInputs = errors.New("no input files found")

// Options describe the table that is written.
type Options struct {
	Delimiter        rune
	DateFormat       string // strftime pattern or Go layout
	DecimalSeparator string
	Header           []string
	EmptyColumns     int
	Multiplier       decimal.NullDecimal // unset means 1; a set zero is kept
	DecimalPlaces    int32
	Suffix           string // e.g. "-consumption.csv"
}

// ReadingSink receives the readings of every transcoded month.
type ReadingSink interface {
	SaveReadings(ctx context.Context, readings []consumption.Reading) error
}

// Recorder receives one observation per transcoded file.
type Recorder interface {
	ObserveTransform(ok bool, rows int)
}

// Outcome is the result for one snapshot file.
type Outcome struct {
	Month  calendar.MonthKey
	Source string
	Output string
	Rows   int
	Err    error
}

// Summary lists the outcome of every snapshot plus the names that did not
// carry a month prefix.
type Summary struct {
	Outcomes []Outcome
	Skipped  []string
}

// Failed counts outcomes with an error.
func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

type Option func(*Transcoder)

func WithSink(sink ReadingSink) Option {
	return func(t *Transcoder) { t.sink = sink }
}

func WithRecorder(r Recorder) Option {
	return func(t *Transcoder) { t.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transcoder) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transcoder writes {outDir}/{YYYY-MM}{suffix} for every snapshot.
type Transcoder struct {
	snapshots  *store.SnapshotStore
	outDir     string
	opts       Options
	layout     string
	multiplier decimal.Decimal
	sink       ReadingSink
	recorder   Recorder
	logger     *slog.Logger
}

// NewTranscoder resolves the date format once and applies defaults.
func NewTranscoder(snapshots *store.SnapshotStore, outDir string, opts Options, options ...Option) (*Transcoder, error) {
	layout, err := timefmt.Layout(opts.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.DecimalSeparator == "" {
		opts.DecimalSeparator = "."
	}
	multiplier := decimal.NewFromInt(1)
	if opts.Multiplier.Valid {
		multiplier = opts.Multiplier.Decimal
	}
	if opts.EmptyColumns < 0 {
		opts.EmptyColumns = 0
	}

	t := &Transcoder{
		snapshots:  snapshots,
		outDir:     outDir,
		opts:       opts,
		layout:     layout,
		multiplier: multiplier,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(t)
	}
	return t, nil
}

// OutputPath returns the table path for month.
func (t *Transcoder) OutputPath(month calendar.MonthKey) string {
	return filepath.Join(t.outDir, month.String()+t.opts.Suffix)
}

// TranscodeAll transcodes every snapshot in the store. A file that fails is
// recorded in its Outcome and the rest still run.
func (t *Transcoder) TranscodeAll(ctx context.Context) (Summary, error) {
	files, skipped, err := t.snapshots.List()
	if err != nil {
		return Summary{}, fmt.Errorf("list snapshots: %w", err)
	}
	for _, name := range skipped {
		t.logger.Warn("could not extract year-month from filename", "file", name)
	}
	if len(files) == 0 {
		return Summary{Skipped: skipped}, ErrNoInputs
	}

	sum := Summary{Skipped: skipped, Outcomes: make([]Outcome, 0, len(files))}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out := t.Transcode(ctx, f)
		if out.Err != nil {
			t.logger.Error("transform failed", "file", filepath.Base(f.Path), "error", out.Err)
		} else {
			t.logger.Info("transformed", "file", filepath.Base(f.Path), "output", out.Output, "rows", out.Rows)
		}
		sum.Outcomes = append(sum.Outcomes, out)
	}
	return sum, nil
}

// Transcode converts one snapshot file.
func (t *Transcoder) Transcode(ctx context.Context, f store.SnapshotFile) Outcome {
	out := Outcome{Month: f.Month, Source: f.Path, Output: t.OutputPath(f.Month)}
	defer func() {
		if t.recorder != nil {
			t.recorder.ObserveTransform(out.Err == nil, out.Rows)
		}
	}()

	resp, err := t.snapshots.Load(f.Path)
	if err != nil {
		out.Err = err
		return out
	}

	nodes := resp.Nodes()
	readings := make([]consumption.Reading, 0, len(nodes))
	records := make([][]string, 0, len(nodes)+1)
	records = append(records, t.header())
	for _, n := range nodes {
		r, err := n.Reading()
		if err != nil {
			out.Err = err
			return out
		}
		readings = append(readings, r)
		records = append(records, t.row(r))
	}

	if err := writeTable(out.Output, t.opts.Delimiter, records); err != nil {
		out.Err = err
		return out
	}
	out.Rows = len(nodes)

	if t.sink != nil {
		if err := t.sink.SaveReadings(ctx, readings); err != nil {
			out.Err = fmt.Errorf("sink readings: %w", err)
		}
	}
	return out
}

func (t *Transcoder) header() []string {
	h := make([]string, 0, len(t.opts.Header)+t.opts.EmptyColumns)
	h = append(h, t.opts.Header...)
	return append(h, make([]string, t.opts.EmptyColumns)...)
}

func (t *Transcoder) row(r consumption.Reading) []string {
	row := make([]string, 2, 2+t.opts.EmptyColumns)
	row[0] = r.From.Format(t.layout)
	row[1] = t.formatValue(r.Value)
	return append(row, make([]string, t.opts.EmptyColumns)...)
}

// formatValue scales and rounds v to fixed decimals. Hours not yet
// reported by the meter are written empty.
func (t *Transcoder) formatValue(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	places := t.opts.DecimalPlaces
	s := v.Mul(t.multiplier).Round(places).StringFixed(places)
	if t.opts.DecimalSeparator != "." {
		s = strings.Replace(s, ".", t.opts.DecimalSeparator, 1)
	}
	return s
}

// writeTable writes records to path through a temp file.
func writeTable(path string, delimiter rune, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	w.Comma = delimiter
	if err := w.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
