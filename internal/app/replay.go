package app

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"market-flight/internal/jsonl"
	"market-flight/internal/pilot"
	"market-flight/internal/playback"
	"market-flight/internal/scheduler"
	"market-flight/internal/telemetry"
)

// Replay plays a sequence headlessly on the scheduler, logging a HUD line
// per frame. With pilot controls it records how far a constant-input pilot
// drifts from the recorded path.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	frames, err := a.loadFrames(ctx, opts.In, opts.RunID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("no frames to replay")
	}

	cfg := a.Config.Playback
	player, err := playback.New(frames, playback.Options{
		FPS:         cfg.FPS,
		Speed:       cfg.Speed,
		TrailLength: cfg.TrailLength,
	})
	if err != nil {
		return err
	}
	player.SetSpeed(opts.Speed)

	sched := scheduler.New(scheduler.Options{
		Interval:     cfg.TickInterval,
		StartupDelay: cfg.StartupDelay,
	}, a.Logger)

	if opts.FlagTour {
		if opts.Controls != "" || opts.DeviationOut != "" {
			return errors.New("pilot controls cannot be combined with a flag tour")
		}
		return a.flagTour(ctx, sched, player, opts)
	}

	if opts.From > 0 {
		player.Scrub(float64(opts.From))
		player.Play()
	}
	start, _ := player.Current()

	var (
		flyer    *pilot.Pilot
		controls pilot.Controls
		recorder pilot.Recorder
	)
	if opts.Controls != "" || opts.DeviationOut != "" {
		controls, err = pilot.ParseControls(opts.Controls)
		if err != nil {
			return err
		}
		flyer, err = pilot.New(start.Position(), pilot.Options{Rate: cfg.PilotRate})
		if err != nil {
			return err
		}
	}

	dt := sched.Interval().Seconds()
	loops := 0
	last := -1
	tick := func(ctx context.Context, at time.Time) error {
		if player.Advance(dt) {
			loops++
			a.Logger.Info().Int("loop", loops).Msg("playback wrapped")
			if opts.Loops > 0 && loops >= opts.Loops {
				return scheduler.ErrStop
			}
			if flyer != nil {
				flyer.Resync(player.Frames()[0])
			}
			last = -1
		}

		frame, ok := player.Current()
		if !ok {
			return nil
		}
		idx := player.Index()

		if flyer != nil {
			flyer.Step(dt, controls)
			recorder.Record(idx, frame, flyer.Position())
		}

		if idx != last {
			last = idx
			player.Trail().Push(frame.Position())
			logHUD(a.Logger, idx, player.Len(), frame)
		}
		return nil
	}

	a.Logger.Info().Int("frames", player.Len()).Int("from", player.Index()).Float64("speed", player.Speed()).
		Dur("tick", cfg.TickInterval).Int("loops", opts.Loops).Msg("starting replay")

	if err := sched.Run(ctx, tick); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	defer a.flushMetrics()

	if flyer == nil {
		a.Logger.Info().Int("loops", loops).Msg("replay stopped")
		return nil
	}

	a.Metrics.RecordMaxDeviation(recorder.MaxDistance())
	a.Logger.Info().
		Int("samples", len(recorder.Samples())).
		Float64("max_deviation", recorder.MaxDistance()).
		Float64("mean_deviation", recorder.MeanDistance()).
		Msg("replay stopped")

	if opts.DeviationOut == "" {
		return nil
	}
	out, err := a.createOutput(opts.DeviationOut)
	if err != nil {
		return err
	}
	if err := jsonl.Write(out, recorder.Samples()); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// flagTour pauses the timeline and jumps between flagged frames, one per
// tick, until no further flag exists in the chosen direction.
func (a *App) flagTour(ctx context.Context, sched *scheduler.Scheduler, player *playback.Player, opts ReplayOptions) error {
	from := float64(opts.From)
	if opts.Reverse && opts.From == 0 {
		from = float64(player.Len() - 1)
	}
	player.Scrub(from)

	visited := 0
	if frame, ok := player.Current(); ok && len(frame.Flags) > 0 {
		visited++
		logHUD(a.Logger, player.Index(), player.Len(), frame)
	}

	tick := func(ctx context.Context, at time.Time) error {
		idx := player.Index()
		next := player.NextFlag
		if opts.Reverse {
			next = player.PrevFlag
		}
		if next() == idx {
			return scheduler.ErrStop
		}
		frame, _ := player.Current()
		visited++
		logHUD(a.Logger, player.Index(), player.Len(), frame)
		return nil
	}

	if err := sched.Run(ctx, tick); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Info().Int("flags_visited", visited).Bool("reverse", opts.Reverse).
		Float64("cursor", player.Cursor()).Bool("playing", player.Playing()).Msg("flag tour finished")
	return nil
}

func logHUD(logger zerolog.Logger, idx, total int, f telemetry.Frame) {
	level := zerolog.DebugLevel
	if len(f.Flags) > 0 {
		level = zerolog.InfoLevel
	}
	logger.WithLevel(level).
		Int("frame", idx).
		Int("of", total).
		Float64("t", f.Timestamp).
		Str("spot", formatFloat(f.Spot, 2)).
		Str("airspeed", formatFloat(f.X, 3)).
		Str("load", formatFloat(f.Y, 3)).
		Str("wall", formatFloat(f.Z, 3)).
		Str("regime", f.Regime.String()).
		Str("flags", strings.Join(f.FlagNames(), ",")).
		Msg("hud")
}
