package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrStop ends Run without reporting an error when returned by a TickFunc.
var ErrStop = errors.New("scheduler: stop")

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// MaxTicks stops the loop after that many ticks when positive.
	MaxTicks int
}

// Scheduler drives fixed-interval playback ticks.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Interval returns the configured tick spacing.
func (s *Scheduler) Interval() time.Duration { return s.opts.Interval }

// Run blocks, invoking tick each interval until ctx is cancelled, the tick
// budget is spent, or tick returns ErrStop. Other tick errors are logged and
// the loop continues.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	ticks := 0
	next := time.Now().Add(s.opts.Interval)
	for {
		delay := time.Until(next)
		if delay < 0 {
			s.logger.Debug().Dur("behind", -delay).Msg("tick overran interval")
			next = time.Now()
			delay = 0
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		if err := tick(ctx, next); err != nil {
			if errors.Is(err, ErrStop) {
				s.logger.Debug().Int("ticks", ticks+1).Msg("tick requested stop")
				return nil
			}
			s.logger.Error().Err(err).Time("at", next).Msg("tick execution failed")
		}

		ticks++
		if s.opts.MaxTicks > 0 && ticks >= s.opts.MaxTicks {
			return nil
		}
		next = next.Add(s.opts.Interval)
	}
}
