package generator

import (
	"math"
	"math/rand/v2"

	"market-flight/internal/telemetry"
)

// FreeWalk produces p.Steps frames from a drifting-volatility random walk.
// Spot and IV carry forward between steps. A nil rng draws a fresh random seed.
func FreeWalk(p GeneratorParams, rng *rand.Rand) []telemetry.Frame {
	rng = ensureRand(rng)
	if p.Steps <= 0 {
		return []telemetry.Frame{}
	}

	lv := levels{atr: p.ATR, flip: p.Flip, putWall: p.PutWall, callWall: p.CallWall}
	spot := p.StartSpot
	iv := p.StartIV

	frames := make([]telemetry.Frame, 0, p.Steps)
	for i := 0; i < p.Steps; i++ {
		iv += (p.TargetIV-iv)*0.05 + uniform(rng)*0.01
		iv = math.Max(iv, 0.01)

		spot += uniform(rng) * p.ATR * 0.5

		x, y, z := mapCoordinates(spot, iv, freeWalkHV, lv)

		flags := []telemetry.Flag{}
		if breached(spot, lv) {
			flags = append(flags, telemetry.FlagBreach)
		}

		frames = append(frames, telemetry.Frame{
			Timestamp: float64(i),
			Spot:      spot,
			IV:        iv,
			HV:        freeWalkHV,
			X:         x,
			Y:         y,
			Z:         z,
			Regime:    ClassifyFreeWalk(x, y),
			Flags:     flags,
		})
	}
	return frames
}
