package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc runs one cycle.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// RunImmediately fires one tick as soon as the startup delay has passed instead of
	// waiting a full interval.
	RunImmediately bool
}

// Scheduler fires a TickFunc on a fixed interval with at most one tick in flight. A tick
// that comes due while the previous one is still running is dropped, not queued.
type Scheduler struct {
	opts   Options
	tick   TickFunc
	logger zerolog.Logger

	busy    atomic.Bool
	fired   atomic.Int64
	skipped atomic.Int64
}

// New constructs a Scheduler instance.
func New(opts Options, tick TickFunc, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval < time.Second {
		return nil, fmt.Errorf("scheduler interval must be at least 1s, got %s", opts.Interval)
	}
	if tick == nil {
		return nil, fmt.Errorf("scheduler tick function is nil")
	}
	return &Scheduler{
		opts:   opts,
		tick:   tick,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Run blocks until ctx is cancelled, then waits for an in-flight tick to return.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	c := cron.New(cron.WithLogger(cronLogger{logger: s.logger}))
	c.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(func() {
		s.Fire(ctx, time.Now().UTC())
	}))

	s.logger.Info().Dur("interval", s.opts.Interval).Msg("scheduler started")
	c.Start()

	var first sync.WaitGroup
	if s.opts.RunImmediately {
		first.Add(1)
		go func() {
			defer first.Done()
			s.Fire(ctx, time.Now().UTC())
		}()
	}

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	first.Wait()
	s.logger.Info().Int64("fired", s.fired.Load()).Int64("skipped", s.skipped.Load()).Msg("scheduler stopped")
	return ctx.Err()
}

// Fire runs one tick unless another is in flight. It reports whether the tick ran.
// Errors and panics from the tick are logged and never propagate.
func (s *Scheduler) Fire(ctx context.Context, at time.Time) (ran bool) {
	if ctx.Err() != nil {
		return false
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Warn().Time("at", at).Msg("previous cycle still running; tick dropped")
		return false
	}
	defer s.busy.Store(false)
	s.fired.Add(1)
	ran = true

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Time("at", at).Msg("cycle panicked")
		}
	}()

	started := time.Now()
	if err := s.tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("cycle failed")
		return ran
	}
	s.logger.Debug().Time("at", at).Dur("took", time.Since(started)).Msg("cycle finished")
	return ran
}

// Skipped counts ticks dropped because a cycle was already running.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
