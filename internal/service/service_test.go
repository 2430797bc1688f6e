package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"market-flight/internal/alerting"
	"market-flight/internal/config"
	"market-flight/internal/generator"
	"market-flight/internal/metrics"
	"market-flight/internal/storage"
	"market-flight/internal/telemetry"
)

type fakeStore struct {
	saved  []storage.Run
	frames [][]telemetry.Frame
	err    error
}

func (f *fakeStore) SaveRun(ctx context.Context, run storage.Run, frames []telemetry.Frame) (storage.Run, error) {
	if f.err != nil {
		return storage.Run{}, f.err
	}
	run.ID = int64(len(f.saved) + 1)
	run.FrameCount = len(frames)
	run.CreatedAt = time.Now().UTC()
	f.saved = append(f.saved, run)
	f.frames = append(f.frames, frames)
	return run, nil
}

func (f *fakeStore) GetRun(ctx context.Context, id int64) (storage.Run, error) {
	return storage.Run{}, storage.ErrRunNotFound
}

func (f *fakeStore) ListRecentRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	return f.saved, nil
}

func (f *fakeStore) LoadFrames(ctx context.Context, runID int64) ([]telemetry.Frame, error) {
	return nil, storage.ErrRunNotFound
}

func (f *fakeStore) DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	notes []alerting.Notification
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.notes = append(f.notes, note)
	return f.err
}

func testConfig(alerts bool) *config.Config {
	return &config.Config{
		Alerting: config.AlertingConfig{Enabled: alerts, Channels: []string{"telegram"}},
	}
}

func breakoutRequest() Request {
	return Request{
		Mode:  ModeScenario,
		Seed:  7,
		Label: "am-breakout",
		Scenario: generator.ScenarioParams{
			Spot: 692.5, Flip: 692.5, PutWall: 680, CallWall: 700,
			IV: 15, HV: 12, ATR: 2.8,
			FrameCount: 120, DurationMinutes: 390,
			ScenarioType: generator.ScenarioBreakout,
		},
	}
}

func TestGeneratePersistsAndAlertsOnBreach(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	rec := metrics.New()
	svc := New(testConfig(true), store, notifier, rec, zerolog.Nop())

	result, err := svc.Generate(context.Background(), breakoutRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Frames) != 120 || result.Seed != 7 {
		t.Fatalf("unexpected result: frames=%d seed=%d", len(result.Frames), result.Seed)
	}
	if !result.Summary.Breached() {
		t.Fatal("breakout should breach the call wall")
	}

	if len(store.saved) != 1 || result.Run == nil || result.Run.ID != 1 {
		t.Fatalf("run should be persisted once, got %+v", store.saved)
	}
	saved := store.saved[0]
	if saved.Mode != "scenario" || saved.ScenarioType != "breakout" || !saved.Breached {
		t.Fatalf("unexpected run header %+v", saved)
	}
	if saved.FirstBreach == nil || *saved.FirstBreach != result.Summary.FirstBreach {
		t.Fatalf("first breach not recorded: %+v", saved.FirstBreach)
	}
	var params generator.ScenarioParams
	if err := json.Unmarshal(saved.Params, &params); err != nil {
		t.Fatalf("params should be JSON: %v", err)
	}
	if params.ScenarioType != generator.ScenarioBreakout || params.FrameCount != 120 {
		t.Fatalf("params = %+v", params)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.RunID != 1 || !note.BreachFrame.HasFlag(telemetry.FlagBreach) {
		t.Fatalf("unexpected notification %+v", note)
	}

	count, err := testutil.GatherAndCount(rec.Registry(), "flightdeck_frames_generated_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one generation series, got %d", count)
	}
}

func TestGenerateWithoutBreachDoesNotAlert(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := New(testConfig(true), nil, notifier, nil, zerolog.Nop())

	req := breakoutRequest()
	req.Scenario.ScenarioType = generator.ScenarioHold
	result, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Summary.Breached() {
		t.Fatal("hold between walls should not breach")
	}
	if result.Run != nil {
		t.Fatal("no store means no run")
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("no alert expected, got %d", len(notifier.notes))
	}
}

func TestGenerateAlertsDisabled(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := New(testConfig(false), nil, notifier, nil, zerolog.Nop())

	if _, err := svc.Generate(context.Background(), breakoutRequest()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("alerts disabled should not notify")
	}
}

func TestGenerateNotifierFailureIsNotFatal(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	svc := New(testConfig(true), nil, notifier, nil, zerolog.Nop())

	if _, err := svc.Generate(context.Background(), breakoutRequest()); err != nil {
		t.Fatalf("notifier failure should only be logged: %v", err)
	}
}

func TestGenerateStoreFailureIsReturned(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	svc := New(testConfig(false), store, nil, nil, zerolog.Nop())

	if _, err := svc.Generate(context.Background(), breakoutRequest()); err == nil {
		t.Fatal("store failure should surface")
	}
}

func TestGenerateRejectsInvalidScenario(t *testing.T) {
	store := &fakeStore{}
	svc := New(testConfig(false), store, nil, nil, zerolog.Nop())

	req := breakoutRequest()
	req.Scenario.HV = 0
	_, err := svc.Generate(context.Background(), req)
	if !errors.Is(err, generator.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("invalid params must not persist anything")
	}
}

func TestGenerateFreeWalkDrawsSeed(t *testing.T) {
	rec := metrics.New()
	svc := New(testConfig(false), nil, nil, rec, zerolog.Nop())

	req := Request{Mode: ModeFreeWalk, Walk: generator.GeneratorParams{
		Steps: 50, StartSpot: 692.5, StartIV: 0.15, TargetIV: 0.15,
		ATR: 2.8, Flip: 692.5, PutWall: 680, CallWall: 700,
	}}
	first, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Seed == 0 || len(first.Frames) != 50 {
		t.Fatalf("seed=%d frames=%d", first.Seed, len(first.Frames))
	}

	req.Seed = first.Seed
	again, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i := range first.Frames {
		if first.Frames[i].Spot != again.Frames[i].Spot {
			t.Fatalf("reported seed should reproduce frame %d", i)
		}
	}
}

func TestGenerateUnknownMode(t *testing.T) {
	svc := New(testConfig(false), nil, nil, nil, zerolog.Nop())
	if _, err := svc.Generate(context.Background(), Request{Mode: "warp"}); err == nil {
		t.Fatal("unknown mode should fail")
	}
}
