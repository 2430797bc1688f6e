package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"market-flight/internal/telemetry"
)

// Recorder tracks generation and replay activity on its own registry so a
// short-lived CLI run can dump it as a node_exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	framesGenerated *prometheus.CounterVec
	regimeFrames    *prometheus.CounterVec
	flagsRaised     *prometheus.CounterVec
	linesSkipped    prometheus.Counter
	generateSeconds *prometheus.HistogramVec
	maxDeviation    prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		framesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightdeck_frames_generated_total",
			Help: "Telemetry frames produced by the generator",
		}, []string{"mode"}),
		regimeFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightdeck_regime_frames_total",
			Help: "Frames observed per regime",
		}, []string{"regime"}),
		flagsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightdeck_flags_raised_total",
			Help: "Event flags raised per tag",
		}, []string{"flag"}),
		linesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightdeck_jsonl_lines_skipped_total",
			Help: "Malformed JSONL lines skipped while parsing",
		}),
		generateSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightdeck_generate_duration_seconds",
			Help:    "Time spent generating a sequence",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"mode"}),
		maxDeviation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightdeck_pilot_max_deviation",
			Help: "Largest pilot distance from the recorded path in the last replay",
		}),
	}
	r.registry.MustRegister(
		r.framesGenerated,
		r.regimeFrames,
		r.flagsRaised,
		r.linesSkipped,
		r.generateSeconds,
		r.maxDeviation,
	)
	return r
}

// Registry exposes the underlying gatherer.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordGeneration counts a generated sequence.
func (r *Recorder) RecordGeneration(mode string, frames []telemetry.Frame, seconds float64) {
	r.framesGenerated.WithLabelValues(mode).Add(float64(len(frames)))
	r.generateSeconds.WithLabelValues(mode).Observe(seconds)
	r.RecordFrames(frames)
}

// RecordFrames counts regimes and flags.
func (r *Recorder) RecordFrames(frames []telemetry.Frame) {
	for _, f := range frames {
		r.regimeFrames.WithLabelValues(f.Regime.String()).Inc()
		for _, flag := range f.Flags {
			r.flagsRaised.WithLabelValues(flag.String()).Inc()
		}
	}
}

// RecordSkippedLines counts malformed input lines.
func (r *Recorder) RecordSkippedLines(n int) {
	if n > 0 {
		r.linesSkipped.Add(float64(n))
	}
}

// RecordMaxDeviation sets the pilot deviation gauge.
func (r *Recorder) RecordMaxDeviation(d float64) {
	r.maxDeviation.Set(d)
}

// WriteTextfile dumps the registry in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
