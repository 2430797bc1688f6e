package generator

import (
	"math"
	"math/rand/v2"

	"market-flight/internal/telemetry"
)

// freeWalkHV is the historical volatility assumed for the whole free-walk sequence.
const freeWalkHV = 0.12

// levels are the price references shared by both generation modes.
type levels struct {
	atr      float64
	flip     float64
	putWall  float64
	callWall float64
}

// mapCoordinates projects spot and volatility onto flight space.
func mapCoordinates(spot, iv, hv float64, lv levels) (x, y, z float64) {
	x = math.Abs(spot-lv.flip) / telemetry.NonZero(lv.atr)
	y = iv / telemetry.NonZero(hv)

	if spot >= lv.flip {
		z = math.Abs(lv.callWall-spot) / telemetry.NonZero(math.Abs(lv.callWall-lv.flip))
	} else {
		z = math.Abs(lv.putWall-spot) / telemetry.NonZero(math.Abs(lv.putWall-lv.flip))
	}
	return x, y, z
}

func breached(spot float64, lv levels) bool {
	return spot > lv.callWall || spot < lv.putWall
}

// ClassifyFreeWalk applies the free-walk thresholds; first match wins.
func ClassifyFreeWalk(x, y float64) telemetry.Regime {
	switch {
	case y > 2.5 || x > 4.5:
		return telemetry.RegimeRupture
	case x < 0.3:
		return telemetry.RegimeTaxi
	case y > 1.5 || x > 2.5:
		return telemetry.RegimeManeuver
	default:
		return telemetry.RegimeCruise
	}
}

// ClassifyScenario applies the scenario thresholds, which look at x only.
func ClassifyScenario(x float64) telemetry.Regime {
	switch {
	case x >= 3:
		return telemetry.RegimeRupture
	case x < 0.5:
		return telemetry.RegimeTaxi
	case x >= 1.5:
		return telemetry.RegimeManeuver
	default:
		return telemetry.RegimeCruise
	}
}

// NewRand returns a PCG-backed source for reproducible sequences.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func ensureRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return NewRand(rand.Uint64())
}

// uniform draws from U(-0.5, 0.5).
func uniform(rng *rand.Rand) float64 {
	return rng.Float64() - 0.5
}
