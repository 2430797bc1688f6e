package app

import (
	"context"

	"market-flight/internal/jsonl"
	"market-flight/internal/service"
	"market-flight/internal/storage"
)

// Generate runs the free-walk generator and writes JSONL.
func (a *App) Generate(ctx context.Context, opts GenerateOptions) error {
	if err := opts.Walk.Validate(); err != nil {
		return err
	}
	return a.generate(ctx, service.ModeFreeWalk, opts)
}

// Scenario runs a scripted scenario and writes JSONL. Invalid parameters fail
// before any output is produced.
func (a *App) Scenario(ctx context.Context, opts GenerateOptions) error {
	if err := opts.Scenario.Validate(); err != nil {
		return err
	}
	return a.generate(ctx, service.ModeScenario, opts)
}

func (a *App) generate(ctx context.Context, mode service.Mode, opts GenerateOptions) error {
	var runStore storage.RunStore
	if opts.Persist {
		store, closeStore, err := a.requireStore(ctx, "persist run")
		if err != nil {
			return err
		}
		defer closeStore()
		runStore = store
	}

	result, err := a.newService(runStore).Generate(ctx, service.Request{
		Mode:     mode,
		Walk:     opts.Walk,
		Scenario: opts.Scenario,
		Seed:     opts.Seed,
		Label:    opts.Label,
	})
	if err != nil {
		return err
	}
	defer a.flushMetrics()

	out, err := a.createOutput(opts.Out)
	if err != nil {
		return err
	}
	if err := jsonl.Encode(out, result.Frames); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	event := a.Logger.Info().
		Uint64("seed", result.Seed).
		Int("frames", result.Summary.Frames).
		Bool("breached", result.Summary.Breached())
	if result.Run != nil {
		event = event.Int64("run_id", result.Run.ID)
	}
	if opts.Out != "" && opts.Out != "-" {
		event = event.Str("out", opts.Out)
	}
	event.Msg("telemetry written")

	return nil
}
