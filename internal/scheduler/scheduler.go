package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is one pipeline run.
type Job func(ctx context.Context) error

// Scheduler periodically runs a Job. Runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       Job
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

// New creates a new Scheduler. A zero timeout lets a run take as long as
// the interval.
func New(interval, timeout time.Duration, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = interval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job, running it once immediately, and starts
// the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	s.logger.Info("scheduler: running pipeline")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	err := s.job(ctx)

	s.mu.Lock()
	s.lastErr = err
	s.lastRun = started
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduler: pipeline failed", "error", err, "duration", time.Since(started))
		return
	}
	s.logger.Info("scheduler: completed pipeline", "duration", time.Since(started))
}

// LastRun reports when the last run started and how it ended.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
