package playback

import (
	"testing"

	"market-flight/internal/telemetry"
)

func sampleFrames(n int) []telemetry.Frame {
	frames := make([]telemetry.Frame, n)
	for i := range frames {
		frames[i] = telemetry.Frame{Timestamp: float64(i), X: float64(i)}
	}
	return frames
}

func TestNewAppliesDefaults(t *testing.T) {
	p, err := New(sampleFrames(3), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.opts.FPS != 30 || p.opts.Speed != 1 || p.opts.TrailLength != 500 {
		t.Fatalf("defaults not applied: %+v", p.opts)
	}
	if !p.Playing() {
		t.Fatal("player should start playing")
	}
}

func TestAdvanceMovesAtFrameRate(t *testing.T) {
	p, err := New(sampleFrames(100), Options{Speed: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p.Advance(0.5)
	if p.Index() != 30 {
		t.Fatalf("0.5s at 30fps x2 should land on 30, got %d", p.Index())
	}

	p.Pause()
	p.Advance(1)
	if p.Index() != 30 {
		t.Fatal("paused player should not move")
	}
}

func TestAdvanceWrapsAndResetsTrail(t *testing.T) {
	p, err := New(sampleFrames(10), Options{FPS: 10})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p.Trail().Push(telemetry.Vec3{X: 1})
	if wrapped := p.Advance(0.5); wrapped {
		t.Fatal("should not wrap yet")
	}
	if wrapped := p.Advance(0.6); !wrapped {
		t.Fatal("should wrap past the end")
	}
	if p.Index() != 0 || p.Trail().Len() != 0 {
		t.Fatalf("wrap should rewind and clear trail, index=%d trail=%d", p.Index(), p.Trail().Len())
	}
}

func TestScrubClampsAndPauses(t *testing.T) {
	p, err := New(sampleFrames(10), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p.Scrub(42)
	if p.Playing() {
		t.Fatal("scrub should pause")
	}
	if p.Index() != 9 {
		t.Fatalf("scrub should clamp to last frame, got %d", p.Index())
	}
	p.Scrub(-3)
	if p.Index() != 0 {
		t.Fatalf("scrub should clamp to 0, got %d", p.Index())
	}
	p.Scrub(4.7)
	f, ok := p.Current()
	if !ok || f.Timestamp != 4 {
		t.Fatalf("fractional cursor should floor to frame 4, got %+v", f)
	}
}

func TestSetSpeedIgnoresNonPositive(t *testing.T) {
	p, err := New(sampleFrames(100), Options{FPS: 10, Speed: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p.SetSpeed(0)
	p.SetSpeed(-2)
	if p.Speed() != 1 {
		t.Fatalf("non-positive speed should be ignored, got %v", p.Speed())
	}
	p.SetSpeed(4)
	p.Advance(0.5)
	if p.Cursor() != 20 {
		t.Fatalf("cursor = %v, want 20 at 4x", p.Cursor())
	}
}

func TestFlagJumps(t *testing.T) {
	frames := sampleFrames(8)
	frames[2].Flags = []telemetry.Flag{telemetry.FlagFlipTest}
	frames[6].Flags = []telemetry.Flag{telemetry.FlagBreach}

	p, err := New(frames, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := p.NextFlag(); got != 2 {
		t.Fatalf("next flag = %d, want 2", got)
	}
	if got := p.NextFlag(); got != 6 {
		t.Fatalf("next flag = %d, want 6", got)
	}
	if got := p.NextFlag(); got != 6 {
		t.Fatalf("no later flag should keep 6, got %d", got)
	}
	if got := p.PrevFlag(); got != 2 {
		t.Fatalf("prev flag = %d, want 2", got)
	}
}

func TestTrailEvictsOldest(t *testing.T) {
	tr := NewTrail(3)
	for i := 0; i < 5; i++ {
		tr.Push(telemetry.Vec3{X: float64(i)})
	}
	pts := tr.Points()
	if len(pts) != 3 || pts[0].X != 2 || pts[2].X != 4 {
		t.Fatalf("unexpected trail %v", pts)
	}
}
