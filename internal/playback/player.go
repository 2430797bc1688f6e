// Package playback drives a scrubbable timeline over a telemetry sequence.
package playback

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"

	"market-flight/internal/telemetry"
)

// Options tune timeline behaviour. Zero fields take the tagged defaults.
type Options struct {
	FPS         float64 `default:"30"`
	Speed       float64 `default:"1"`
	TrailLength int     `default:"500"`
}

// Player keeps a fractional cursor into frames.
type Player struct {
	frames  []telemetry.Frame
	opts    Options
	cursor  float64
	playing bool
	trail   *Trail
}

// New builds a player that starts playing at the first frame.
func New(frames []telemetry.Frame, opts Options) (*Player, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply playback defaults: %w", err)
	}
	if opts.FPS <= 0 || opts.Speed <= 0 || opts.TrailLength <= 0 {
		return nil, fmt.Errorf("playback options must be positive: %+v", opts)
	}
	return &Player{
		frames:  frames,
		opts:    opts,
		playing: true,
		trail:   NewTrail(opts.TrailLength),
	}, nil
}

// Len returns the number of frames.
func (p *Player) Len() int { return len(p.frames) }

// Frames exposes the underlying sequence; callers must not mutate it.
func (p *Player) Frames() []telemetry.Frame { return p.frames }

// Playing reports whether Advance moves the cursor.
func (p *Player) Playing() bool { return p.playing }

func (p *Player) Play()  { p.playing = true }
func (p *Player) Pause() { p.playing = false }

// Speed returns the playback multiplier.
func (p *Player) Speed() float64 { return p.opts.Speed }

// SetSpeed changes the multiplier; non-positive values are ignored.
func (p *Player) SetSpeed(speed float64) {
	if speed > 0 {
		p.opts.Speed = speed
	}
}

// Cursor returns the fractional position.
func (p *Player) Cursor() float64 { return p.cursor }

// Index returns the frame index under the cursor.
func (p *Player) Index() int { return int(math.Floor(p.cursor)) }

// Current returns the frame under the cursor.
func (p *Player) Current() (telemetry.Frame, bool) {
	i := p.Index()
	if i < 0 || i >= len(p.frames) {
		return telemetry.Frame{}, false
	}
	return p.frames[i], true
}

// Trail returns the position history.
func (p *Player) Trail() *Trail { return p.trail }

// Advance moves the cursor by dt seconds of playback. It reports true when
// the cursor ran off the end and wrapped to the start, clearing the trail.
func (p *Player) Advance(dt float64) bool {
	if !p.playing || len(p.frames) == 0 || dt <= 0 {
		return false
	}
	p.cursor += dt * p.opts.FPS * p.opts.Speed
	if p.cursor >= float64(len(p.frames)) {
		p.cursor = 0
		p.trail.Reset()
		return true
	}
	return false
}

// Scrub moves the cursor to index, clamped to the sequence, and pauses.
func (p *Player) Scrub(index float64) {
	p.Pause()
	p.cursor = p.clamp(index)
}

// NextFlag jumps to the next flagged frame, if any.
func (p *Player) NextFlag() int {
	p.cursor = float64(telemetry.NextFlag(p.frames, p.Index()))
	return p.Index()
}

// PrevFlag jumps to the previous flagged frame, if any.
func (p *Player) PrevFlag() int {
	p.cursor = float64(telemetry.PrevFlag(p.frames, p.Index()))
	return p.Index()
}

func (p *Player) clamp(index float64) float64 {
	if len(p.frames) == 0 || index < 0 || math.IsNaN(index) {
		return 0
	}
	last := float64(len(p.frames) - 1)
	if index > last {
		return last
	}
	return index
}
