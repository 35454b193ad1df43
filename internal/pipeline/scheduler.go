package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "schedcard/internal/log"
)

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	timeout time.Duration

	// ctx is the Start context. Ticks inherit it; it is set before the
	// cron loop starts.
	ctx context.Context
}

// NewScheduler parses schedule (standard five-field cron syntax) in loc and
// binds job to it. Each run is bounded by timeout; zero means no bound.
func NewScheduler(schedule string, loc *time.Location, timeout time.Duration, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("pipeline: scheduler job is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		job:     job,
		timeout: timeout,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(s.ctx) }); err != nil {
		return nil, fmt.Errorf("pipeline: invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the job once immediately, then on schedule until ctx is done.
// It blocks until the scheduler has stopped and any running job finished.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.run(ctx)
	s.cron.Start()
	appLog.Info("refresh scheduler started", "next", s.Next().Format(time.RFC3339))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}

// Next returns the next scheduled activation, or the zero time when the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	started := time.Now()
	if err := s.job(ctx); err != nil {
		appLog.Error("scheduled refresh failed", err, "elapsed", time.Since(started).Round(time.Millisecond))
		return
	}
	appLog.Debug("scheduled refresh done", "elapsed", time.Since(started).Round(time.Millisecond))
}

// cronLogger routes cron's own messages to the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
