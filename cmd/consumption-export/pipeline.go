package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getverbrauch/consumption-export/internal/config"
	"github.com/getverbrauch/consumption-export/internal/consumption"
	"github.com/getverbrauch/consumption-export/internal/export"
	"github.com/getverbrauch/consumption-export/internal/logging"
	"github.com/getverbrauch/consumption-export/internal/metrics"
	"github.com/getverbrauch/consumption-export/internal/store"
	"github.com/getverbrauch/consumption-export/internal/tibber"
	"github.com/getverbrauch/consumption-export/internal/validate"
)

// errInvalidFiles is returned when at least one table failed validation.
var errInvalidFiles = errors.New("validation failed")

// pipeline wires the stages together for one configuration.
type pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Recorder
	snapshots *store.SnapshotStore
	reports   *store.ReportStore
	sink      *store.PostgresSink
	source    consumption.Source
	out       io.Writer
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*pipeline, error) {
	p := &pipeline{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.New(),
		snapshots: store.NewSnapshotStore(cfg.InputDir(), cfg.Paths.Input.JSONFilePrefix),
		reports:   store.NewReportStore(cfg.Server.ReportHistory, cfg.Server.ReportMaxAge),
		out:       out,
	}

	if cfg.Database.URL != "" {
		sink, err := store.NewPostgresSink(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		p.sink = sink
	}
	return p, nil
}

func (p *pipeline) Close() {
	if p.sink != nil {
		p.sink.Close()
	}
}

func (p *pipeline) service() (*consumption.Service, error) {
	if p.source == nil {
		if err := p.cfg.RequireToken(); err != nil {
			return nil, err
		}
		httpClient := &http.Client{Timeout: p.cfg.Tibber.Timeout}
		p.source = tibber.NewClient(httpClient, p.cfg.Tibber.AccessToken,
			tibber.WithEndpoint(p.cfg.Tibber.Endpoint),
			tibber.WithLogger(p.logger),
		)
	}
	return consumption.NewService(p.source, p.snapshots,
		consumption.WithPageSize(p.cfg.Tibber.First),
		consumption.WithServiceLogger(p.logger),
		consumption.WithFetchRecorder(p.metrics),
	), nil
}

// fetch downloads the configured range, or the current month when no range
// is configured.
func (p *pipeline) fetch(ctx context.Context) error {
	svc, err := p.service()
	if err != nil {
		return err
	}

	var outcomes consumption.Outcomes
	if p.cfg.Tibber.DateRange == "" {
		p.logger.Info("no date range configured; fetching current month")
		outcomes = consumption.Outcomes{svc.FetchCurrent(ctx)}
	} else if outcomes, err = svc.FetchRange(ctx, p.cfg.Tibber.DateRange); err != nil {
		return err
	}

	fmt.Fprintf(p.out, "Fetched %d of %d months successfully\n", len(outcomes)-outcomes.Failed(), len(outcomes))
	if len(outcomes) > 0 && outcomes.Failed() == len(outcomes) {
		return errors.New("no month could be fetched")
	}
	return nil
}

// fetchCurrent is the scheduled variant of fetch.
func (p *pipeline) fetchCurrent(ctx context.Context) error {
	svc, err := p.service()
	if err != nil {
		return err
	}
	return svc.FetchCurrent(ctx).Err
}

func (p *pipeline) transform(ctx context.Context) error {
	opts := export.Options{
		Delimiter:        p.cfg.CSV.DelimiterRune(),
		DateFormat:       p.cfg.CSV.DateFormat,
		DecimalSeparator: p.cfg.CSV.DecimalSeparator,
		Header:           p.cfg.CSV.Header,
		EmptyColumns:     p.cfg.CSV.EmptyColumns,
		Multiplier:       decimal.NewNullDecimal(p.cfg.Processing.Multiplier()),
		DecimalPlaces:    int32(p.cfg.Processing.DecimalPlaces),
		Suffix:           p.cfg.Paths.Output.CSVFilePrefix,
	}
	options := []export.Option{export.WithLogger(p.logger), export.WithRecorder(p.metrics)}
	if p.sink != nil {
		options = append(options, export.WithSink(p.sink))
	}

	tr, err := export.NewTranscoder(p.snapshots, p.cfg.OutputDir(), opts, options...)
	if err != nil {
		return err
	}
	sum, err := tr.TranscodeAll(ctx)
	if errors.Is(err, export.ErrNoInputs) {
		fmt.Fprintf(p.out, "No JSON files found matching pattern *%s in %s\n", p.cfg.Paths.Input.JSONFilePrefix, p.cfg.InputDir())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Processed %d of %d files successfully\n", len(sum.Outcomes)-sum.Failed(), len(sum.Outcomes))
	return nil
}

func (p *pipeline) combine() error {
	res, err := export.Combine(p.cfg.OutputDir(), p.cfg.Paths.Output.CSVFilePrefix,
		p.cfg.Paths.Output.CombinedFile, p.cfg.CSV.DelimiterRune(), p.logger)
	if errors.Is(err, export.ErrNoInputs) {
		fmt.Fprintln(p.out, "No CSV files found to combine.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Successfully created combined consumption file: %s\n", res.Output)
	return nil
}

// validate checks every table in the output directory, prints one block per
// file and stores the results. errInvalidFiles is returned if any failed.
func (p *pipeline) validate(ctx context.Context) error {
	v, err := validate.New(validate.Options{
		Delimiter:        p.cfg.CSV.DelimiterRune(),
		DateFormat:       p.cfg.CSV.DateFormat,
		DecimalSeparator: p.cfg.CSV.DecimalSeparator,
		Header:           p.cfg.CSV.Header,
		Workers:          p.cfg.Workers,
	}, p.logger, p.metrics)
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(filepath.Join(p.cfg.OutputDir(), "*"+p.cfg.Paths.Output.CSVFilePrefix))
	if err != nil {
		return err
	}
	sort.Strings(paths)

	results := v.ValidateFiles(ctx, paths)
	p.reports.Save(results...)
	printResults(p.out, results)

	for _, r := range results {
		if !r.Valid {
			return errInvalidFiles
		}
	}
	return nil
}

func printResults(w io.Writer, results []validate.FileResult) {
	for _, r := range results {
		fmt.Fprintf(w, "\nValidating %s:\n", r.File)
		switch {
		case r.Err != nil:
			fmt.Fprintln(w, "❌ File has validation errors:")
			fmt.Fprintf(w, "  - %v\n", r.Err)
		case r.Valid:
			fmt.Fprintln(w, "✅ File is valid")
		default:
			fmt.Fprintln(w, "❌ File has validation errors:")
			for _, e := range r.Report.Errors() {
				fmt.Fprintf(w, "  - %s\n", e)
			}
		}
	}
}

// runAll executes the stages in order. fetchStage picks the fetch variant.
// The stages run on a copy of p carrying the run logger, so p itself is
// never written while a run is in flight.
func (p *pipeline) runAll(ctx context.Context, fetchStage func(*pipeline, context.Context) error) error {
	logger, _ := logging.WithRunID(p.logger)
	run := *p
	run.logger = logger

	started := time.Now()
	logger.Info("pipeline started")

	err := run.stages(ctx, fetchStage)
	p.metrics.ObserveRun(time.Since(started), err)
	if err != nil && !errors.Is(err, errInvalidFiles) {
		logger.Error("pipeline failed", logging.AttachError(err)...)
		return err
	}
	logger.Info("pipeline finished", "duration", time.Since(started), "valid", err == nil)
	return err
}

func (p *pipeline) stages(ctx context.Context, fetchStage func(*pipeline, context.Context) error) error {
	if err := fetchStage(p, ctx); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := p.transform(ctx); err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	if err := p.combine(); err != nil {
		return fmt.Errorf("combine: %w", err)
	}
	return p.validate(ctx)
}
