package generator

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"market-flight/internal/telemetry"
)

func defaultWalkParams(steps int) GeneratorParams {
	return GeneratorParams{
		Steps:     steps,
		StartSpot: 692.5,
		StartIV:   0.15,
		TargetIV:  0.15,
		ATR:       2.8,
		Flip:      692.5,
		PutWall:   680,
		CallWall:  700,
	}
}

func defaultScenarioParams(kind ScenarioType, frames int) ScenarioParams {
	return ScenarioParams{
		Spot:            692.5,
		Flip:            692.5,
		PutWall:         680,
		CallWall:        700,
		IV:              15,
		HV:              12,
		ATR:             2.8,
		FrameCount:      frames,
		DurationMinutes: 390,
		ScenarioType:    kind,
	}
}

func TestFreeWalkLengthAndInvariants(t *testing.T) {
	frames := FreeWalk(defaultWalkParams(250), NewRand(7))
	if len(frames) != 250 {
		t.Fatalf("expected 250 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Timestamp != float64(i) {
			t.Fatalf("frame %d timestamp = %v", i, f.Timestamp)
		}
		if f.X < 0 {
			t.Fatalf("frame %d has negative x %v", i, f.X)
		}
		if f.HV != 0.12 {
			t.Fatalf("free walk hv should stay fixed, got %v", f.HV)
		}
		if f.IV < 0.01 {
			t.Fatalf("iv fell below floor: %v", f.IV)
		}
		if f.Regime != ClassifyFreeWalk(f.X, f.Y) {
			t.Fatalf("frame %d regime %v does not match coordinates", i, f.Regime)
		}
		breach := f.Spot > 700 || f.Spot < 680
		if breach != f.HasFlag(telemetry.FlagBreach) {
			t.Fatalf("frame %d breach flag mismatch at spot %v", i, f.Spot)
		}
	}
}

func TestFreeWalkIsReproducibleWithSeed(t *testing.T) {
	a := FreeWalk(defaultWalkParams(64), NewRand(42))
	b := FreeWalk(defaultWalkParams(64), NewRand(42))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed should reproduce the same sequence")
	}

	c := FreeWalk(defaultWalkParams(64), NewRand(43))
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds should diverge")
	}
}

func TestFreeWalkEmptyWhenNoSteps(t *testing.T) {
	if frames := FreeWalk(defaultWalkParams(0), nil); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
}

func TestFreeWalkGuardsZeroATR(t *testing.T) {
	p := defaultWalkParams(5)
	p.ATR = 0
	p.StartSpot = 693
	for _, f := range FreeWalk(p, NewRand(1)) {
		if math.IsNaN(f.X) || math.IsInf(f.X, 0) {
			t.Fatalf("x should stay finite with zero atr, got %v", f.X)
		}
	}
}

func TestClassifyFreeWalkPrecedence(t *testing.T) {
	cases := []struct {
		x, y float64
		want telemetry.Regime
	}{
		{x: 0.1, y: 2.6, want: telemetry.RegimeRupture},
		{x: 4.6, y: 1.0, want: telemetry.RegimeRupture},
		{x: 0.2, y: 2.0, want: telemetry.RegimeTaxi},
		{x: 1.0, y: 1.6, want: telemetry.RegimeManeuver},
		{x: 2.6, y: 1.0, want: telemetry.RegimeManeuver},
		{x: 1.0, y: 1.0, want: telemetry.RegimeCruise},
		{x: 4.5, y: 2.5, want: telemetry.RegimeManeuver},
	}
	for _, tc := range cases {
		if got := ClassifyFreeWalk(tc.x, tc.y); got != tc.want {
			t.Fatalf("ClassifyFreeWalk(%v, %v) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestClassifyScenarioBoundaries(t *testing.T) {
	cases := []struct {
		x    float64
		want telemetry.Regime
	}{
		{0, telemetry.RegimeTaxi},
		{0.49, telemetry.RegimeTaxi},
		{0.5, telemetry.RegimeCruise},
		{1.5, telemetry.RegimeManeuver},
		{2.99, telemetry.RegimeManeuver},
		{3, telemetry.RegimeRupture},
	}
	for _, tc := range cases {
		if got := ClassifyScenario(tc.x); got != tc.want {
			t.Fatalf("ClassifyScenario(%v) = %v, want %v", tc.x, got, tc.want)
		}
	}

	lv := levels{atr: 2, flip: 100, putWall: 90, callWall: 110}
	x, _, _ := mapCoordinates(100, 0.1, 0.1, lv)
	if x != 0 || ClassifyScenario(x) != telemetry.RegimeTaxi {
		t.Fatalf("spot at flip should be taxi, x=%v", x)
	}
	x, _, _ = mapCoordinates(106, 0.1, 0.1, lv)
	if x != 3 || ClassifyScenario(x) != telemetry.RegimeRupture {
		t.Fatalf("spot at flip+3atr should be rupture, x=%v", x)
	}
}

func TestMapCoordinatesWallProximity(t *testing.T) {
	lv := levels{atr: 2, flip: 100, putWall: 90, callWall: 110}

	_, _, z := mapCoordinates(105, 0.2, 0.1, lv)
	if z != 0.5 {
		t.Fatalf("z above flip = %v, want 0.5", z)
	}
	_, _, z = mapCoordinates(90, 0.2, 0.1, lv)
	if z != 0 {
		t.Fatalf("z at put wall = %v, want 0", z)
	}

	flat := levels{atr: 2, flip: 100, putWall: 90, callWall: 100}
	_, _, z = mapCoordinates(101, 0.2, 0.1, flat)
	if math.IsInf(z, 0) || math.IsNaN(z) {
		t.Fatalf("z should be finite when call wall equals flip, got %v", z)
	}
}

func TestScenarioLengthAndTimestamps(t *testing.T) {
	for _, kind := range ScenarioTypes {
		frames, err := Scenario(defaultScenarioParams(kind, 130), NewRand(3))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", kind, err)
		}
		if len(frames) != 130 {
			t.Fatalf("%s: expected 130 frames, got %d", kind, len(frames))
		}
		step := 390.0 / 130.0
		for i, f := range frames {
			if f.Timestamp != float64(i)*step {
				t.Fatalf("%s: frame %d timestamp %v", kind, i, f.Timestamp)
			}
			if f.X < 0 {
				t.Fatalf("%s: negative x at %d", kind, i)
			}
			if f.IV != 0.15 || f.HV != 0.12 {
				t.Fatalf("%s: volatility should be constant decimals, got iv=%v hv=%v", kind, f.IV, f.HV)
			}
			if math.Abs(f.Y-1.25) > 1e-12 {
				t.Fatalf("%s: y = %v, want 1.25", kind, f.Y)
			}
		}
	}
}

func TestScenarioBreachLatchesRupture(t *testing.T) {
	frames, err := Scenario(defaultScenarioParams(ScenarioFalseBreakdown, 100), NewRand(11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := -1
	for i, f := range frames {
		if f.HasFlag(telemetry.FlagBreach) {
			first = i
			break
		}
	}
	if first < 0 {
		t.Fatal("false breakdown should breach the put wall")
	}

	latchedLower := false
	for i := first; i < len(frames); i++ {
		if frames[i].Regime != telemetry.RegimeRupture {
			t.Fatalf("frame %d regime %v after breach at %d", i, frames[i].Regime, first)
		}
		if ClassifyScenario(frames[i].X) != telemetry.RegimeRupture {
			latchedLower = true
		}
	}
	if !latchedLower {
		t.Fatal("recovery frames should only be rupture because of the latch")
	}

	for i := 0; i < first; i++ {
		if frames[i].Regime != ClassifyScenario(frames[i].X) {
			t.Fatalf("frame %d before breach should follow x classification", i)
		}
	}
}

func TestScenarioFlagsAreNotLatched(t *testing.T) {
	frames, err := Scenario(defaultScenarioParams(ScenarioFalseBreakdown, 100), NewRand(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := frames[len(frames)-1]
	if last.HasFlag(telemetry.FlagBreach) {
		t.Fatalf("recovered frame should not carry BREACH, spot=%v", last.Spot)
	}
}

func TestFalseBreakdownRecoversToBaseSpot(t *testing.T) {
	p := defaultScenarioParams(ScenarioFalseBreakdown, 100)
	p.Spot = 690
	frames, err := Scenario(p, NewRand(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jitter := p.ATR * 0.1
	for i := 30; i < len(frames); i++ {
		if math.Abs(frames[i].Spot-p.Spot) > jitter {
			t.Fatalf("frame %d spot %v should hold near base spot %v, not flip %v", i, frames[i].Spot, p.Spot, p.Flip)
		}
	}
}

func TestScenarioHoldRaisesFlipTest(t *testing.T) {
	frames, err := Scenario(defaultScenarioParams(ScenarioHold, 50), NewRand(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, f := range frames {
		if math.Abs(f.Spot-692.5) > 0.15 {
			t.Fatalf("hold jitter too wide at %d: %v", i, f.Spot)
		}
		if !f.HasFlag(telemetry.FlagFlipTest) {
			t.Fatalf("hold at flip should flag FLIP_TEST at %d", i)
		}
		if f.Regime != telemetry.RegimeTaxi {
			t.Fatalf("hold at flip should taxi, got %v", f.Regime)
		}
	}
}

func TestScenarioFlagOrder(t *testing.T) {
	lv := levels{atr: 100, flip: 100, putWall: 95, callWall: 105}
	flags := scenarioFlags(104, lv)
	want := []telemetry.Flag{telemetry.FlagFlipTest, telemetry.FlagWallTest}
	if !reflect.DeepEqual(flags, want) {
		t.Fatalf("flags = %v, want %v", flags, want)
	}

	lv = levels{atr: 2.8, flip: 692.5, putWall: 680, callWall: 700}
	flags = scenarioFlags(701, lv)
	if !reflect.DeepEqual(flags, []telemetry.Flag{telemetry.FlagBreach}) {
		t.Fatalf("flags = %v, want [BREACH]", flags)
	}
	flags = scenarioFlags(699.7, lv)
	if !reflect.DeepEqual(flags, []telemetry.Flag{telemetry.FlagWallTest}) {
		t.Fatalf("flags = %v, want [WALL_TEST]", flags)
	}
}

func TestMeanRevertStartsAtFlipAndDecays(t *testing.T) {
	p := defaultScenarioParams(ScenarioMeanRevert, 200)
	p.Spot = 695
	frames, err := Scenario(p, NewRand(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frames[0].Spot != p.Flip {
		t.Fatalf("first spot = %v, want flip %v", frames[0].Spot, p.Flip)
	}

	prev := meanRevertAmplitude(0, p.ATR)
	for i := 1; i <= 10; i++ {
		amp := meanRevertAmplitude(float64(i)/10, p.ATR)
		if amp >= prev {
			t.Fatalf("amplitude should strictly decrease: %v then %v", prev, amp)
		}
		prev = amp
	}
	if got := meanRevertAmplitude(1, p.ATR); got != p.ATR*0.25 {
		t.Fatalf("amplitude at the end = %v, want half of %v", got, p.ATR*0.5)
	}
}

func TestBreakoutOvershootsCallWall(t *testing.T) {
	frames, err := Scenario(defaultScenarioParams(ScenarioBreakout, 100), NewRand(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := frames[len(frames)-1]
	if last.Spot <= 700 {
		t.Fatalf("last spot %v should exceed call wall", last.Spot)
	}
	if last.Regime != telemetry.RegimeRupture {
		t.Fatalf("breakout should end in rupture, got %v", last.Regime)
	}
	if frames[0].Spot != 692.5 {
		t.Fatalf("breakout should start at base spot, got %v", frames[0].Spot)
	}
}

func TestBreakoutNeedsFiveFramesToBreach(t *testing.T) {
	short, err := Scenario(defaultScenarioParams(ScenarioBreakout, 4), NewRand(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := short[len(short)-1]; last.Spot != 700 || last.HasFlag(telemetry.FlagBreach) {
		t.Fatalf("four frames should end exactly on the call wall without breach, got %v %v", last.Spot, last.Flags)
	}

	five, err := Scenario(defaultScenarioParams(ScenarioBreakout, 5), NewRand(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := five[len(five)-1]; last.Spot <= 700 || !last.HasFlag(telemetry.FlagBreach) {
		t.Fatalf("five frames should cross the call wall, got %v %v", last.Spot, last.Flags)
	}
}

func TestScenarioRejectsInvalidParams(t *testing.T) {
	cases := map[string]func(p *ScenarioParams){
		"zero hv":        func(p *ScenarioParams) { p.HV = 0 },
		"zero atr":       func(p *ScenarioParams) { p.ATR = 0 },
		"no frames":      func(p *ScenarioParams) { p.FrameCount = 0 },
		"walls equal":    func(p *ScenarioParams) { p.CallWall = p.PutWall },
		"walls inverted": func(p *ScenarioParams) { p.CallWall, p.PutWall = 680, 700 },
		"unknown type":   func(p *ScenarioParams) { p.ScenarioType = "moonshot" },
	}

	for name, mutate := range cases {
		p := defaultScenarioParams(ScenarioHold, 10)
		mutate(&p)
		frames, err := Scenario(p, NewRand(1))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("%s: error should wrap ErrInvalidParams: %v", name, err)
		}
		if frames != nil {
			t.Fatalf("%s: no frames should be returned", name)
		}
	}
}

func TestValidationMessageNamesFields(t *testing.T) {
	p := defaultScenarioParams(ScenarioHold, 10)
	p.HV = 0
	p.CallWall = 600
	err := p.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"hv must be greater than 0", "callWall must be greater than putWall"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q should mention %q", msg, want)
		}
	}
}

func TestGeneratorParamsValidate(t *testing.T) {
	if err := defaultWalkParams(10).Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if err := defaultWalkParams(0).Validate(); err == nil {
		t.Fatal("zero steps should fail validation")
	}

	for _, atr := range []float64{0, -2.8} {
		p := defaultWalkParams(10)
		p.ATR = atr
		err := p.Validate()
		if !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("atr %v should fail validation, got %v", atr, err)
		}
		if !strings.Contains(err.Error(), "atr must be greater than 0") {
			t.Fatalf("error should name atr: %v", err)
		}
	}
}
