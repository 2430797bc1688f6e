package playback

import "market-flight/internal/telemetry"

// Trail is a fixed-capacity history of positions, oldest first.
type Trail struct {
	points []telemetry.Vec3
	start  int
	size   int
}

// NewTrail allocates a trail holding at most capacity points.
func NewTrail(capacity int) *Trail {
	if capacity < 1 {
		capacity = 1
	}
	return &Trail{points: make([]telemetry.Vec3, capacity)}
}

// Push appends p, evicting the oldest point when full.
func (t *Trail) Push(p telemetry.Vec3) {
	if t.size < len(t.points) {
		t.points[(t.start+t.size)%len(t.points)] = p
		t.size++
		return
	}
	t.points[t.start] = p
	t.start = (t.start + 1) % len(t.points)
}

// Len returns the number of stored points.
func (t *Trail) Len() int { return t.size }

// Reset drops every point.
func (t *Trail) Reset() {
	t.start = 0
	t.size = 0
}

// Points copies the trail oldest first.
func (t *Trail) Points() []telemetry.Vec3 {
	out := make([]telemetry.Vec3, t.size)
	for i := 0; i < t.size; i++ {
		out[i] = t.points[(t.start+i)%len(t.points)]
	}
	return out
}
