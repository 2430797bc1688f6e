package storage

import (
	"encoding/json"
	"time"
)

// Run describes one persisted generated sequence.
type Run struct {
	ID           int64
	Label        string
	Mode         string
	ScenarioType string
	Seed         uint64
	Params       json.RawMessage
	FrameCount   int
	Breached     bool
	FirstBreach  *int
	CreatedAt    time.Time
}
