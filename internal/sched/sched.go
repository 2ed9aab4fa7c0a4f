package sched

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Cancel stops a scheduled job. Safe to call more than once.
type Cancel func()

// Scheduler runs callbacks on its own goroutines.
type Scheduler interface {
	Every(d time.Duration, fn func()) (Cancel, error)
	After(d time.Duration, fn func()) (Cancel, error)
	Shutdown() error
}

// Gocron backs Scheduler with a single gocron scheduler shared by all rooms.
type Gocron struct {
	s      gocron.Scheduler
	logger *zap.Logger
}

func NewGocron(logger *zap.Logger, opts ...gocron.SchedulerOption) (*Gocron, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	s.Start()
	return &Gocron{s: s, logger: logger}, nil
}

// Every runs fn every d. A run that overlaps the previous one is skipped.
func (g *Gocron) Every(d time.Duration, fn func()) (Cancel, error) {
	job, err := g.s.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(fn),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule every %s: %w", d, err)
	}
	return g.cancelFor(job), nil
}

// After runs fn once, d from now.
func (g *Gocron) After(d time.Duration, fn func()) (Cancel, error) {
	start := gocron.OneTimeJobStartImmediately()
	if d > 0 {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(d))
	}
	job, err := g.s.NewJob(gocron.OneTimeJob(start), gocron.NewTask(fn))
	if errors.Is(err, gocron.ErrOneTimeJobStartDateTimePast) {
		job, err = g.s.NewJob(gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()), gocron.NewTask(fn))
	}
	if err != nil {
		return nil, fmt.Errorf("schedule after %s: %w", d, err)
	}
	return g.cancelFor(job), nil
}

func (g *Gocron) cancelFor(job gocron.Job) Cancel {
	id := job.ID()
	return func() {
		if err := g.s.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			g.logger.Warn("sched_remove_failed", zap.String("job", id.String()), zap.Error(err))
		}
	}
}

func (g *Gocron) Shutdown() error { return g.s.Shutdown() }
