// Package scheduler runs the periodic reminder and waitlist expiry sweeps.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/logging"
	"courtbook/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	SweepReminders      = "reminders"
	SweepWaitlistExpiry = "waitlist_expiry"
)

type ReminderSender interface {
	SendDueReminders(ctx context.Context) (int, error)
}

type WaitlistExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Sweep is one periodic job. Run returns how many items it handled.
type Sweep struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// Scheduler runs each sweep in its own loop. A loop finishes a run before
// waiting for the next tick, so a sweep never overlaps itself.
type Scheduler struct {
	sweeps []Sweep
	logger *zerolog.Logger
	wg     sync.WaitGroup
}

func New(reminders ReminderSender, expirer WaitlistExpirer, cfg config.SchedulerConfig, logger *zerolog.Logger) *Scheduler {
	return NewWithSweeps(logger,
		Sweep{Name: SweepReminders, Interval: cfg.ReminderInterval, Run: reminders.SendDueReminders},
		Sweep{Name: SweepWaitlistExpiry, Interval: cfg.ExpiryInterval, Run: expirer.ExpireOverdue},
	)
}

func NewWithSweeps(logger *zerolog.Logger, sweeps ...Sweep) *Scheduler {
	l := logging.Component(logger, "scheduler")
	return &Scheduler{sweeps: sweeps, logger: &l}
}

// Run starts every sweep and blocks until ctx is done and the loops exit.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, sw := range s.sweeps {
		if sw.Interval <= 0 {
			return fmt.Errorf("sweep %s: interval must be positive", sw.Name)
		}
	}

	for _, sw := range s.sweeps {
		s.wg.Add(1)
		go func(sw Sweep) {
			defer s.wg.Done()
			s.loop(ctx, sw)
		}(sw)
	}
	s.logger.Info().Int("sweeps", len(s.sweeps)).Msg("scheduler started")

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, sw Sweep) {
	t := time.NewTicker(sw.Interval)
	defer t.Stop()

	// kick immediately
	s.runSweep(ctx, sw)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.runSweep(ctx, sw)
		}
	}
}

// RunOnce runs the named sweep synchronously.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (int, error) {
	for _, sw := range s.sweeps {
		if sw.Name == name {
			return s.runSweep(ctx, sw)
		}
	}
	return 0, fmt.Errorf("unknown sweep %q", name)
}

func (s *Scheduler) runSweep(ctx context.Context, sw Sweep) (int, error) {
	started := time.Now()
	defer metrics.ObserveSweep(sw.Name, started)

	n, err := sw.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("sweep", sw.Name).Int("handled", n).Msg("sweep failed")
		return n, err
	}
	if n > 0 {
		s.logger.Info().Str("sweep", sw.Name).Int("handled", n).Dur("took", time.Since(started)).Msg("sweep finished")
	} else {
		s.logger.Debug().Str("sweep", sw.Name).Msg("sweep finished, nothing to do")
	}
	return n, nil
}
