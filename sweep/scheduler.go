package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron"
)

// Runner is one sweep pass with an injected clock.
type Runner interface {
	Run(ctx context.Context, now time.Time) *Report
}

// Scheduler triggers sweeps on a cron cadence. Each run gets its own deadline
// and reads the clock once, so a sweep observes a single consistent "now".
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewScheduler(timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the scheduler clock.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Add registers a sweep under the cron spec.
func (s *Scheduler) Add(name, spec string, job Runner) error {
	if err := s.cron.AddFunc(spec, func() { s.runOnce(name, job) }); err != nil {
		return fmt.Errorf("sweep: schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) runOnce(name string, job Runner) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in sweep", "sweep", name, "panic", fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report := job.Run(ctx, s.now())
	report.Log(s.logger)
}

// Start begins triggering registered sweeps.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the trigger loop; an in-flight run finishes under its deadline.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
