package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"market-flight/internal/alerting"
	"market-flight/internal/config"
	"market-flight/internal/generator"
	"market-flight/internal/metrics"
	"market-flight/internal/storage"
	"market-flight/internal/telemetry"
)

// Mode selects the generation path.
type Mode string

const (
	ModeFreeWalk Mode = "free_walk"
	ModeScenario Mode = "scenario"
)

// Request describes one generation.
type Request struct {
	Mode     Mode
	Walk     generator.GeneratorParams
	Scenario generator.ScenarioParams
	// Seed drives the generator; zero draws a fresh seed.
	Seed  uint64
	Label string
}

// Result is a generated sequence with its bookkeeping.
type Result struct {
	Frames  []telemetry.Frame
	Summary telemetry.Summary
	Seed    uint64
	// Run is set when the sequence was persisted.
	Run *storage.Run
}

// Service orchestrates generation, persistence, metrics, and alerting.
type Service struct {
	store    storage.RunStore
	notifier alerting.Notifier
	metrics  *metrics.Recorder
	logger   zerolog.Logger

	channels []string
	alertsOn bool
}

// New constructs the generation service. store, notifier, and rec may be nil.
func New(cfg *config.Config, store storage.RunStore, notifier alerting.Notifier, rec *metrics.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  rec,
		logger:   logger.With().Str("component", "service").Logger(),
		channels: cfg.Alerting.Channels,
		alertsOn: cfg.Alerting.Enabled,
	}
}

// Generate runs the requested generator and handles the side effects.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	seed := req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := generator.NewRand(seed)

	started := time.Now()
	var (
		frames []telemetry.Frame
		params any
		kind   string
		err    error
	)
	switch req.Mode {
	case ModeFreeWalk:
		frames = generator.FreeWalk(req.Walk, rng)
		params = req.Walk
	case ModeScenario:
		frames, err = generator.Scenario(req.Scenario, rng)
		if err != nil {
			return Result{}, err
		}
		params = req.Scenario
		kind = string(req.Scenario.ScenarioType)
	default:
		return Result{}, fmt.Errorf("unknown generation mode %q", req.Mode)
	}
	elapsed := time.Since(started)

	summary := telemetry.Summarize(frames)
	if s.metrics != nil {
		s.metrics.RecordGeneration(string(req.Mode), frames, elapsed.Seconds())
	}

	s.logger.Info().
		Str("mode", string(req.Mode)).
		Str("scenario", kind).
		Uint64("seed", seed).
		Int("frames", summary.Frames).
		Int("first_breach", summary.FirstBreach).
		Dur("elapsed", elapsed).
		Msg("sequence generated")

	result := Result{Frames: frames, Summary: summary, Seed: seed}

	if s.store != nil {
		run, err := s.persist(ctx, req, kind, seed, params, summary, frames)
		if err != nil {
			return Result{}, err
		}
		result.Run = &run
	}

	s.maybeNotify(ctx, req, kind, result)
	return result, nil
}

func (s *Service) persist(ctx context.Context, req Request, kind string, seed uint64, params any, summary telemetry.Summary, frames []telemetry.Frame) (storage.Run, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return storage.Run{}, fmt.Errorf("marshal run params: %w", err)
	}

	run := storage.Run{
		Label:        req.Label,
		Mode:         string(req.Mode),
		ScenarioType: kind,
		Seed:         seed,
		Params:       raw,
		Breached:     summary.Breached(),
	}
	if summary.Breached() {
		idx := summary.FirstBreach
		run.FirstBreach = &idx
	}

	saved, err := s.store.SaveRun(ctx, run, frames)
	if err != nil {
		return storage.Run{}, fmt.Errorf("save run: %w", err)
	}
	s.logger.Info().Int64("run_id", saved.ID).Int("frames", saved.FrameCount).Msg("run persisted")
	return saved, nil
}

func (s *Service) maybeNotify(ctx context.Context, req Request, kind string, result Result) {
	if !s.alertsOn || s.notifier == nil || !result.Summary.Breached() {
		return
	}

	note := alerting.Notification{
		Label:        req.Label,
		Mode:         string(req.Mode),
		ScenarioType: kind,
		Seed:         result.Seed,
		Summary:      result.Summary,
		BreachFrame:  result.Frames[result.Summary.FirstBreach],
		Channels:     s.channels,
	}
	if result.Run != nil {
		note.RunID = result.Run.ID
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Int("first_breach", result.Summary.FirstBreach).Msg("failed to dispatch alert")
	}
}
