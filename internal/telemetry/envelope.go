package telemetry

import "math"

const (
	// CruiseThresholdX marks the plane where structural airspeed leaves the taxi band.
	CruiseThresholdX = 1.0
	// RuptureThresholdX marks the plane past which the scenario generator classifies rupture.
	RuptureThresholdX = 3.0

	defaultExtent = 10.0
)

// Vec3 is a point in flight space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Len returns the Euclidean norm.
func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Envelope is the axis-aligned box enclosing a frame sequence.
type Envelope struct {
	Min    Vec3
	Max    Vec3
	Center Vec3
	// Extent is Max-Min per axis; a degenerate axis is widened to a fixed size.
	Extent Vec3
}

// Bounds computes the flight envelope of frames. An empty slice yields a
// zero-centred envelope with the default extent.
func Bounds(frames []Frame) Envelope {
	if len(frames) == 0 {
		return Envelope{Extent: Vec3{X: defaultExtent, Y: defaultExtent, Z: defaultExtent}}
	}

	min := Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := Vec3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, f := range frames {
		min.X = math.Min(min.X, f.X)
		min.Y = math.Min(min.Y, f.Y)
		min.Z = math.Min(min.Z, f.Z)
		max.X = math.Max(max.X, f.X)
		max.Y = math.Max(max.Y, f.Y)
		max.Z = math.Max(max.Z, f.Z)
	}

	return Envelope{
		Min: min,
		Max: max,
		Center: Vec3{
			X: (min.X + max.X) / 2,
			Y: (min.Y + max.Y) / 2,
			Z: (min.Z + max.Z) / 2,
		},
		Extent: Vec3{
			X: extentOrDefault(max.X - min.X),
			Y: extentOrDefault(max.Y - min.Y),
			Z: extentOrDefault(max.Z - min.Z),
		},
	}
}

func extentOrDefault(v float64) float64 {
	if v == 0 {
		return defaultExtent
	}
	return v
}
