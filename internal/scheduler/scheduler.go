// Package scheduler runs the periodic seat lock sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Sweeper removes expired seat locks.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// LockSweeper triggers Sweeper at a fixed interval.  Runs never overlap: a
// run still busy when the next is due makes that tick reschedule.
type LockSweeper struct {
	s        gocron.Scheduler
	sweeper  Sweeper
	interval time.Duration
	log      *logrus.Entry
}

// NewLockSweeper registers the sweep job.  Nothing runs until Run.
func NewLockSweeper(sweeper Sweeper, interval time.Duration) (*LockSweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &LockSweeper{
		s:        s,
		sweeper:  sweeper,
		interval: interval,
		log:      logrus.WithField("component", "lock-sweeper"),
	}, nil
}

// Run starts the job and blocks until ctx is cancelled.  Each sweep is
// bounded by the interval so a stuck database call cannot pile up runs.
func (l *LockSweeper) Run(ctx context.Context) error {
	_, err := l.s.NewJob(
		gocron.DurationJob(l.interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, l.interval)
			defer cancel()
			if _, err := l.sweeper.SweepExpired(runCtx); err != nil {
				l.log.WithError(err).Error("lock sweep failed")
			}
		}),
		gocron.WithName("sweep-expired-locks"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	l.s.Start()
	l.log.WithField("interval", l.interval.String()).Info("lock sweeper started")

	<-ctx.Done()
	if err := l.s.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	l.log.Info("lock sweeper stopped")
	return nil
}
