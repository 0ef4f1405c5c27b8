package consumption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getverbrauch/consumption-export/internal/calendar"
	"github.com/getverbrauch/consumption-export/internal/datetoken"
)

// Source fetches one page of hourly consumption after cursor. A first of 0
// lets the source pick the page size.
type Source interface {
	Consumption(ctx context.Context, cursor string, first int) (Snapshot, error)
}

// Saver persists a fetched month and returns where it went.
type Saver interface {
	Save(snap Snapshot) (string, error)
}

// Recorder receives one observation per fetched month.
type Recorder interface {
	ObserveFetch(ok bool)
}

// MonthOutcome is the result of fetching one month.
type MonthOutcome struct {
	Month calendar.MonthKey
	Path  string
	Nodes int
	Err   error
}

type Outcomes []MonthOutcome

// Failed counts months that could not be fetched or saved.
func (o Outcomes) Failed() int {
	n := 0
	for _, m := range o {
		if m.Err != nil {
			n++
		}
	}
	return n
}

// Service fetches consumption month by month and stores the raw snapshots.
type Service struct {
	source   Source
	saver    Saver
	first    int
	now      calendar.Clock
	logger   *slog.Logger
	recorder Recorder
}

type ServiceOption func(*Service)

// WithPageSize fixes the number of records requested per month.
func WithPageSize(first int) ServiceOption {
	return func(s *Service) { s.first = first }
}

func WithClock(now calendar.Clock) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithFetchRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a new Service.
func NewService(source Source, saver Saver, opts ...ServiceOption) *Service {
	s := &Service{
		source: source,
		saver:  saver,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchRange fetches every month of the "YYYY-MM;YYYY-MM" range in order.
// A malformed, reversed or future range is returned as an error. A month
// that fails is logged and recorded in its outcome and the rest continue.
func (s *Service) FetchRange(ctx context.Context, rangeText string) (Outcomes, error) {
	r, err := calendar.ParseRange(rangeText, s.now)
	if err != nil {
		return nil, fmt.Errorf("date range %q: %w", rangeText, err)
	}

	s.logger.Info("fetching consumption", "range", r.String(), "months", r.Len())
	outcomes := make(Outcomes, 0, r.Len())
	for _, m := range r.Months() {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, s.FetchMonth(ctx, m))
	}
	return outcomes, nil
}

// FetchCurrent fetches the month the clock is in.
func (s *Service) FetchCurrent(ctx context.Context) MonthOutcome {
	return s.FetchMonth(ctx, calendar.MonthOf(s.now()))
}

// FetchMonth fetches and saves a single month.
func (s *Service) FetchMonth(ctx context.Context, month calendar.MonthKey) MonthOutcome {
	out := MonthOutcome{Month: month}
	defer func() {
		if s.recorder != nil {
			s.recorder.ObserveFetch(out.Err == nil)
		}
		if out.Err != nil {
			// Log and continue; one bad month must not stop the range.
			s.logger.Error("fetch failed", "month", month.String(), "error", out.Err)
			return
		}
		s.logger.Info("month saved", "month", month.String(), "path", out.Path, "nodes", out.Nodes)
	}()

	cursor, err := datetoken.EncodeTransportToken(month.String())
	if err != nil {
		out.Err = fmt.Errorf("encode cursor: %w", err)
		return out
	}

	snap, err := s.source.Consumption(ctx, cursor, s.first)
	if err != nil {
		out.Err = err
		return out
	}
	snap.Month = month
	out.Nodes = len(snap.Response.Nodes())
	if out.Nodes == 0 {
		s.logger.Warn("no consumption nodes returned", "month", month.String())
	}

	if s.saver == nil {
		out.Err = errors.New("no snapshot saver configured")
		return out
	}
	if out.Path, err = s.saver.Save(snap); err != nil {
		out.Err = err
	}
	return out
}
