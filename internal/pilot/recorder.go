package pilot

import "market-flight/internal/telemetry"

// Deviation compares the pilot with the recorded frame at one instant.
type Deviation struct {
	Index     int              `json:"index"`
	Timestamp float64          `json:"timestamp"`
	Regime    telemetry.Regime `json:"regime"`
	Frame     telemetry.Vec3   `json:"frame"`
	Pilot     telemetry.Vec3   `json:"pilot"`
	Distance  float64          `json:"distance"`
}

// Recorder accumulates the deviation path.
type Recorder struct {
	samples []Deviation
	max     float64
	sum     float64
}

// Record appends a sample for frame index i.
func (r *Recorder) Record(i int, f telemetry.Frame, pos telemetry.Vec3) Deviation {
	framePos := f.Position()
	d := Deviation{
		Index:     i,
		Timestamp: f.Timestamp,
		Regime:    f.Regime,
		Frame:     framePos,
		Pilot:     pos,
		Distance:  pos.Sub(framePos).Len(),
	}
	r.samples = append(r.samples, d)
	r.sum += d.Distance
	if d.Distance > r.max {
		r.max = d.Distance
	}
	return d
}

// Samples returns the recorded path.
func (r *Recorder) Samples() []Deviation { return r.samples }

// MaxDistance is the largest recorded deviation.
func (r *Recorder) MaxDistance() float64 { return r.max }

// MeanDistance is the average deviation, zero when empty.
func (r *Recorder) MeanDistance() float64 {
	if len(r.samples) == 0 {
		return 0
	}
	return r.sum / float64(len(r.samples))
}
