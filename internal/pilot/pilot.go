// Package pilot implements free flight off the recorded path and measures
// how far the pilot deviates from it.
package pilot

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"

	"market-flight/internal/telemetry"
)

// Controls is a set of held flight keys.
type Controls uint8

const (
	Forward Controls = 1 << iota // W: z-
	Back                         // S: z+
	Left                         // A: x-
	Right                        // D: x+
	Climb                        // Q: y+
	Dive                         // E: y-
)

var controlKeys = map[string]Controls{
	"w": Forward, "forward": Forward,
	"s": Back, "back": Back,
	"a": Left, "left": Left,
	"d": Right, "right": Right,
	"q": Climb, "climb": Climb,
	"e": Dive, "dive": Dive,
}

// ParseControls reads a comma separated key list such as "w,q".
func ParseControls(s string) (Controls, error) {
	var c Controls
	for _, part := range strings.Split(s, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if key == "" {
			continue
		}
		bit, ok := controlKeys[key]
		if !ok {
			return 0, fmt.Errorf("unknown pilot control %q", part)
		}
		c |= bit
	}
	return c, nil
}

// Has reports whether every bit of o is held.
func (c Controls) Has(o Controls) bool { return c&o == o }

// Options tune the pilot.
type Options struct {
	Rate float64 `default:"5"` // units per second
}

// Pilot is the free-flight position.
type Pilot struct {
	pos  telemetry.Vec3
	rate float64
}

// New places a pilot at start.
func New(start telemetry.Vec3, opts Options) (*Pilot, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply pilot defaults: %w", err)
	}
	if opts.Rate <= 0 {
		return nil, fmt.Errorf("pilot rate must be positive, got %v", opts.Rate)
	}
	return &Pilot{pos: start, rate: opts.Rate}, nil
}

// Position returns the current pilot position.
func (p *Pilot) Position() telemetry.Vec3 { return p.pos }

// Step moves the pilot for dt seconds with controls held.
func (p *Pilot) Step(dt float64, c Controls) {
	step := p.rate * dt
	if c.Has(Forward) {
		p.pos.Z -= step
	}
	if c.Has(Back) {
		p.pos.Z += step
	}
	if c.Has(Left) {
		p.pos.X -= step
	}
	if c.Has(Right) {
		p.pos.X += step
	}
	if c.Has(Climb) {
		p.pos.Y += step
	}
	if c.Has(Dive) {
		p.pos.Y -= step
	}
}

// Resync snaps the pilot back onto the recorded path.
func (p *Pilot) Resync(f telemetry.Frame) {
	p.pos = f.Position()
}
