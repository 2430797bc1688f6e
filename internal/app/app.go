package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"market-flight/internal/alerting"
	"market-flight/internal/config"
	"market-flight/internal/generator"
	"market-flight/internal/jsonl"
	"market-flight/internal/metrics"
	"market-flight/internal/service"
	"market-flight/internal/source"
	"market-flight/internal/storage"
	"market-flight/internal/telemetry"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
	// Stdout and Stdin back the "-" location.
	Stdout io.Writer
	Stdin  io.Reader
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Metrics: metrics.New(),
		Stdout:  os.Stdout,
		Stdin:   os.Stdin,
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return nil
}

func (a *App) newLoader() *source.Loader {
	return source.New(source.Options{
		Timeout:   a.Config.Source.RequestTimeout,
		UserAgent: a.Config.Source.UserAgent,
		Stdin:     a.Stdin,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if a.Config.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context, action string) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("database not configured; cannot %s: %w", action, storage.ErrNotConfigured)
	}
	return store, closeStore, nil
}

// WalkParams returns free-walk parameters seeded from configuration.
func (a *App) WalkParams() generator.GeneratorParams {
	g := a.Config.Generator
	return generator.GeneratorParams{
		Steps:     g.Steps,
		StartSpot: g.StartSpot,
		StartIV:   g.StartIV,
		TargetIV:  g.TargetIV,
		ATR:       g.ATR,
		Flip:      g.Flip,
		PutWall:   g.PutWall,
		CallWall:  g.CallWall,
	}
}

// ScenarioParams returns scenario parameters seeded from configuration.
func (a *App) ScenarioParams() generator.ScenarioParams {
	g := a.Config.Generator
	s := a.Config.Scenario
	return generator.ScenarioParams{
		Spot:            g.StartSpot,
		Flip:            g.Flip,
		PutWall:         g.PutWall,
		CallWall:        g.CallWall,
		IV:              s.IVPct,
		HV:              s.HVPct,
		ATR:             g.ATR,
		FrameCount:      s.FrameCount,
		DurationMinutes: s.DurationMinutes,
		ScenarioType:    generator.ScenarioType(s.Type),
	}
}

// loadFrames reads a stored run when runID is set, otherwise a JSONL location.
func (a *App) loadFrames(ctx context.Context, location string, runID int64) ([]telemetry.Frame, error) {
	if runID > 0 {
		store, closeStore, err := a.requireStore(ctx, "load run")
		if err != nil {
			return nil, err
		}
		defer closeStore()

		if _, err := store.GetRun(ctx, runID); err != nil {
			return nil, fmt.Errorf("run %d: %w", runID, err)
		}
		return store.LoadFrames(ctx, runID)
	}

	if location == "" {
		return nil, errors.New("either --in or --run must be provided")
	}

	rc, err := a.newLoader().Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	result, err := jsonl.Decode(rc, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Metrics.RecordSkippedLines(len(result.Skipped))
	if len(result.Skipped) > 0 {
		a.Logger.Warn().Int("skipped", len(result.Skipped)).Int("frames", len(result.Frames)).
			Str("location", location).Msg("telemetry loaded with skipped lines")
	}
	return result.Frames, nil
}

// createOutput opens path for writing; "" and "-" mean stdout.
func (a *App) createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{a.Stdout}, nil
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (a *App) flushMetrics() {
	if err := a.Metrics.WriteTextfile(a.Config.Metrics.TextfilePath); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to write metrics textfile")
	}
}

func (a *App) newService(store storage.RunStore) *service.Service {
	return service.New(a.Config, store, a.newNotifier(), a.Metrics, a.Logger)
}

// GenerateOptions configure the generate and scenario commands.
type GenerateOptions struct {
	Walk     generator.GeneratorParams
	Scenario generator.ScenarioParams
	Seed     uint64
	Out      string
	Label    string
	Persist  bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	In    string
	RunID int64
	Limit int
}

// ExportOptions hold parameters for exporting a sequence.
type ExportOptions struct {
	In        string
	RunID     int64
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ReplayOptions configure headless playback.
type ReplayOptions struct {
	In           string
	RunID        int64
	Loops        int
	Speed        float64
	Controls     string
	DeviationOut string
	// From scrubs the timeline to this frame before playing.
	From int
	// FlagTour steps between flagged frames instead of playing.
	FlagTour bool
	Reverse  bool
}

// RunsOptions configure the runs command.
type RunsOptions struct {
	Limit       int
	PruneBefore *time.Time
}
