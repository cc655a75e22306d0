// Package scheduler runs the daily evaluation and cache-maintenance jobs on
// cron schedules when the monitor runs as a daemon.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a schedulable unit of work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	name string
	fn   func(context.Context) error
}

// NewJob wraps a function as a named job.
func NewJob(name string, fn func(context.Context) error) JobFunc {
	return JobFunc{name: name, fn: fn}
}

// Run executes the wrapped function.
func (j JobFunc) Run(ctx context.Context) error { return j.fn(ctx) }

// Name returns the job name.
func (j JobFunc) Name() string { return j.name }

// Scheduler manages background jobs. Jobs on the same scheduler never
// overlap themselves; cron serializes each entry.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a scheduler using standard 5-field cron expressions.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule, e.g. "30 22 * * *" or
// "@daily". Each invocation gets a fresh background context; job failures
// are logged and the schedule keeps running.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(context.Background()); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})

	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}
