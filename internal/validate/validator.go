// Package validate checks hourly consumption exports for header shape and
// for temporal completeness: one parseable row per hour, no duplicates and
// no missing days.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/getverbrauch/consumption-export/internal/timefmt"
)

// Options describe the export format being validated.
type Options struct {
	Delimiter        rune
	DateFormat       string // strftime pattern or Go layout
	DecimalSeparator string
	Header           []string
	Workers          int
}

// Recorder receives one observation per validated file.
type Recorder interface {
	ObserveValidation(valid bool, errorCount int)
}

// FileResult is the outcome for one file. Err is set when the file could not
// be opened; Report is then empty.
type FileResult struct {
	File      string    `json:"file"`
	Report    Report    `json:"report"`
	Valid     bool      `json:"valid"`
	CheckedAt time.Time `json:"checked_at"`
	Err       error     `json:"-"`
}

// Validator validates export files with a fixed set of Options.
type Validator struct {
	opts     Options
	layout   string
	logger   *slog.Logger
	recorder Recorder
}

// New builds a Validator. The date format is resolved once up front.
func New(opts Options, logger *slog.Logger, recorder Recorder) (*Validator, error) {
	layout, err := timefmt.Layout(opts.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{opts: opts, layout: layout, logger: logger, recorder: recorder}, nil
}

// ValidateTable runs both checks over an already parsed table.
func (v *Validator) ValidateTable(t Table) Report {
	return Merge(Structure(t, v.opts.Header), Content(t, v.layout, v.opts.DecimalSeparator))
}

// ValidateFile opens and validates path. Failing to open the file is
// returned as an error; a read failure part-way through is reported.
func (v *Validator) ValidateFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var report Report
	t, err := ReadTable(f, v.opts.Delimiter)
	if err != nil {
		report = Report{
			StructuralErrors: []string{fmt.Sprintf("Error reading file: %v", err)},
			ContentErrors:    []string{fmt.Sprintf("Error validating content: %v", err)},
		}
	} else {
		report = v.ValidateTable(t)
	}

	if v.recorder != nil {
		v.recorder.ObserveValidation(report.Valid(), len(report.Errors()))
	}
	return report, nil
}

// ValidateFiles validates paths on a bounded number of workers. Results are
// ordered by file name regardless of completion order.
func (v *Validator) ValidateFiles(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := min(v.opts.Workers, len(paths))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = v.validateOne(paths[idx])
			}
		}()
	}

	for i := range paths {
		if ctx.Err() != nil {
			results[i] = FileResult{File: filepath.Base(paths[i]), Err: ctx.Err(), CheckedAt: time.Now().UTC()}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

func (v *Validator) validateOne(path string) FileResult {
	res := FileResult{File: filepath.Base(path)}
	report, err := v.ValidateFile(path)
	res.CheckedAt = time.Now().UTC()
	if err != nil {
		v.logger.Error("validation aborted", "file", res.File, "error", err)
		res.Err = err
		return res
	}
	res.Report = report
	res.Valid = report.Valid()
	v.logger.Info("validated file", "file", res.File, "valid", res.Valid, "errors", len(report.Errors()))
	return res
}
