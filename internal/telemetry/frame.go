package telemetry

import (
	"fmt"
	"strings"
)

// Epsilon replaces a denominator that is exactly zero.
const Epsilon = 1e-9

// Regime classifies market stress for a single frame.
type Regime uint8

const (
	RegimeTaxi Regime = iota
	RegimeCruise
	RegimeManeuver
	RegimeRupture
)

var regimeNames = [...]string{
	RegimeTaxi:     "TAXI",
	RegimeCruise:   "CRUISE",
	RegimeManeuver: "MANEUVER",
	RegimeRupture:  "RUPTURE",
}

// Regimes lists every regime in severity order.
var Regimes = []Regime{RegimeTaxi, RegimeCruise, RegimeManeuver, RegimeRupture}

func (r Regime) String() string {
	if int(r) < len(regimeNames) {
		return regimeNames[r]
	}
	return fmt.Sprintf("Regime(%d)", uint8(r))
}

// ParseRegime resolves the upper-case regime name.
func ParseRegime(s string) (Regime, error) {
	for i, name := range regimeNames {
		if strings.EqualFold(s, name) {
			return Regime(i), nil
		}
	}
	return 0, fmt.Errorf("unknown regime %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Regime) MarshalText() ([]byte, error) {
	if int(r) >= len(regimeNames) {
		return nil, fmt.Errorf("invalid regime %d", uint8(r))
	}
	return []byte(regimeNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Regime) UnmarshalText(text []byte) error {
	parsed, err := ParseRegime(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Color returns the RGB hex used to paint the regime.
func (r Regime) Color() uint32 {
	switch r {
	case RegimeTaxi:
		return 0xaaaaaa
	case RegimeCruise:
		return 0x00ff88
	case RegimeManeuver:
		return 0xffff00
	case RegimeRupture:
		return 0xff0055
	default:
		return 0x00ff88
	}
}

// Flag marks an event raised on a frame.
type Flag uint8

const (
	FlagBreach Flag = iota
	FlagFlipTest
	FlagWallTest
)

var flagNames = [...]string{
	FlagBreach:   "BREACH",
	FlagFlipTest: "FLIP_TEST",
	FlagWallTest: "WALL_TEST",
}

// Flags lists every flag.
var Flags = []Flag{FlagBreach, FlagFlipTest, FlagWallTest}

func (f Flag) String() string {
	if int(f) < len(flagNames) {
		return flagNames[f]
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// ParseFlag resolves a flag tag.
func ParseFlag(s string) (Flag, error) {
	for i, name := range flagNames {
		if strings.EqualFold(s, name) {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Flag) MarshalText() ([]byte, error) {
	if int(f) >= len(flagNames) {
		return nil, fmt.Errorf("invalid flag %d", uint8(f))
	}
	return []byte(flagNames[f]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Flag) UnmarshalText(text []byte) error {
	parsed, err := ParseFlag(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Frame is one telemetry sample: market state mapped onto flight coordinates.
//
// X is structural airspeed (distance of spot from flip in ATRs), Y is load
// factor (iv/hv) and Z is wall proximity relative to the flip level.
type Frame struct {
	Timestamp float64 `json:"timestamp"`
	Spot      float64 `json:"spot"`
	IV        float64 `json:"iv"`
	HV        float64 `json:"hv"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Regime    Regime  `json:"regime"`
	Flags     []Flag  `json:"flags"`
}

// HasFlag reports whether the frame raised f.
func (f Frame) HasFlag(flag Flag) bool {
	for _, v := range f.Flags {
		if v == flag {
			return true
		}
	}
	return false
}

// LoadFactor recomputes iv/hv with the zero guard.
func (f Frame) LoadFactor() float64 {
	return f.IV / NonZero(f.HV)
}

// Position returns the frame's spatial coordinates.
func (f Frame) Position() Vec3 {
	return Vec3{X: f.X, Y: f.Y, Z: f.Z}
}

// FlagNames renders flags as their tags.
func (f Frame) FlagNames() []string {
	names := make([]string, len(f.Flags))
	for i, flag := range f.Flags {
		names[i] = flag.String()
	}
	return names
}

// NonZero substitutes Epsilon for an exact zero.
func NonZero(v float64) float64 {
	if v == 0 {
		return Epsilon
	}
	return v
}

// NextFlag returns the index of the next flagged frame after current, or current if none.
func NextFlag(frames []Frame, current int) int {
	for i := current + 1; i < len(frames); i++ {
		if len(frames[i].Flags) > 0 {
			return i
		}
	}
	return current
}

// PrevFlag returns the index of the previous flagged frame before current, or current if none.
func PrevFlag(frames []Frame, current int) int {
	start := current - 1
	if start >= len(frames) {
		start = len(frames) - 1
	}
	for i := start; i >= 0; i-- {
		if len(frames[i].Flags) > 0 {
			return i
		}
	}
	return current
}
