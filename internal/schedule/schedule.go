// Package schedule runs a job on a cron schedule until its context ends.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled run. at is the scheduled fire time.
type Job func(ctx context.Context, at time.Time) error

type Scheduler struct {
	name     string
	schedule cron.Schedule
	job      Job
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(name string, schedule cron.Schedule, job Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:     name,
		schedule: schedule,
		job:      job,
		loc:      time.Local,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("job", name))
	return s
}

// Run blocks, firing the job at every scheduled time, until ctx is done.
// Job errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.now().In(s.loc)
		next := s.schedule.Next(now)
		if next.IsZero() {
			s.logger.Warn("schedule has no future activation, stopping")
			return nil
		}
		wait := next.Sub(now)
		s.logger.Info("next run scheduled",
			zap.String("at", next.Format("Mon Jan 2 15:04")),
			zap.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		started := s.now()
		if err := s.job(ctx, next); err != nil {
			s.logger.Error("scheduled run failed", zap.Error(err))
			continue
		}
		s.logger.Info("scheduled run complete", zap.Duration("took", s.now().Sub(started)))
	}
}

// Start runs the scheduler in a goroutine. The returned channel is closed
// once the loop has exited.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	return done
}
