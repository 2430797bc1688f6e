package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"market-flight/internal/telemetry"
)

// motionPolicy returns the spot price for step i of a scenario.
type motionPolicy func(progress float64, p ScenarioParams, i int, rng *rand.Rand) float64

var policies = map[ScenarioType]motionPolicy{
	ScenarioHold:           holdSpot,
	ScenarioFalseBreakdown: falseBreakdownSpot,
	ScenarioBreakout:       breakoutSpot,
	ScenarioMeanRevert:     meanRevertSpot,
}

// Scenario produces p.FrameCount frames following the named motion policy.
// Parameters are validated before any frame is generated.
func Scenario(p ScenarioParams, rng *rand.Rand) ([]telemetry.Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	policy, ok := policies[p.ScenarioType]
	if !ok {
		return nil, fmt.Errorf("%w: no motion policy for %q", ErrInvalidParams, p.ScenarioType)
	}
	rng = ensureRand(rng)

	lv := levels{atr: p.ATR, flip: p.Flip, putWall: p.PutWall, callWall: p.CallWall}
	iv := p.IV / 100
	hv := p.HV / 100
	stepMinutes := p.DurationMinutes / float64(p.FrameCount)

	frames := make([]telemetry.Frame, 0, p.FrameCount)
	latched := false
	for i := 0; i < p.FrameCount; i++ {
		progress := float64(i) / float64(p.FrameCount)
		spot := policy(progress, p, i, rng)

		x, y, z := mapCoordinates(spot, iv, hv, lv)
		flags := scenarioFlags(spot, lv)

		if !latched && breached(spot, lv) {
			latched = true
		}
		regime := ClassifyScenario(x)
		if latched {
			regime = telemetry.RegimeRupture
		}

		frames = append(frames, telemetry.Frame{
			Timestamp: float64(i) * stepMinutes,
			Spot:      spot,
			IV:        iv,
			HV:        hv,
			X:         x,
			Y:         y,
			Z:         z,
			Regime:    regime,
			Flags:     flags,
		})
	}
	return frames, nil
}

func scenarioFlags(spot float64, lv levels) []telemetry.Flag {
	flags := []telemetry.Flag{}
	if math.Abs(spot-lv.flip) < lv.atr*0.1 {
		flags = append(flags, telemetry.FlagFlipTest)
	}
	nearest := math.Min(math.Abs(spot-lv.putWall), math.Abs(spot-lv.callWall))
	if nearest < lv.atr*0.2 {
		flags = append(flags, telemetry.FlagWallTest)
	}
	if breached(spot, lv) {
		flags = append(flags, telemetry.FlagBreach)
	}
	return flags
}

func holdSpot(_ float64, p ScenarioParams, _ int, rng *rand.Rand) float64 {
	return p.Spot + uniform(rng)*p.ATR*0.1
}

func falseBreakdownSpot(progress float64, p ScenarioParams, i int, rng *rand.Rand) float64 {
	low := p.PutWall - p.ATR*0.5
	switch {
	case progress < 0.25:
		return p.Spot + (low-p.Spot)*(progress/0.25)
	case progress < 0.30:
		return low + (p.Spot-low)*((progress-0.25)/0.05)
	default:
		return holdSpot(progress, p, i, rng)
	}
}

// breakoutSpot ramps toward the call wall, then crosses it once progress
// passes 0.75. The last frame sits at progress (n-1)/n, so a sequence needs at
// least five frames to end above the wall.
func breakoutSpot(progress float64, p ScenarioParams, _ int, _ *rand.Rand) float64 {
	if progress < 0.75 {
		target := p.CallWall + p.ATR*0.5
		return p.Spot + (target-p.Spot)*(progress/0.75)*0.8
	}
	return p.CallWall + (progress-0.75)*2*p.ATR
}

func meanRevertSpot(progress float64, p ScenarioParams, i int, _ *rand.Rand) float64 {
	amplitude := meanRevertAmplitude(progress, p.ATR)
	cycle := float64(i) / float64(p.FrameCount)
	return p.Flip + math.Sin(2*math.Pi*cycle*2)*amplitude
}

// meanRevertAmplitude decays linearly to half of 0.5·atr over the sequence.
func meanRevertAmplitude(progress, atr float64) float64 {
	return atr * 0.5 * (1 - progress*0.5)
}
