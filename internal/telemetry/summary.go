package telemetry

// Summary aggregates a frame sequence for reporting.
type Summary struct {
	Frames      int
	ByRegime    map[Regime]int
	ByFlag      map[Flag]int
	FirstBreach int // -1 when the sequence never breached
	MinSpot     float64
	MaxSpot     float64
	Envelope    Envelope
}

// Breached reports whether any frame raised BREACH.
func (s Summary) Breached() bool {
	return s.FirstBreach >= 0
}

// Summarize walks frames once and collects counts.
func Summarize(frames []Frame) Summary {
	s := Summary{
		Frames:      len(frames),
		ByRegime:    make(map[Regime]int, len(Regimes)),
		ByFlag:      make(map[Flag]int, len(Flags)),
		FirstBreach: -1,
		Envelope:    Bounds(frames),
	}

	for i, f := range frames {
		s.ByRegime[f.Regime]++
		for _, flag := range f.Flags {
			s.ByFlag[flag]++
		}
		if s.FirstBreach < 0 && f.HasFlag(FlagBreach) {
			s.FirstBreach = i
		}
		if i == 0 || f.Spot < s.MinSpot {
			s.MinSpot = f.Spot
		}
		if i == 0 || f.Spot > s.MaxSpot {
			s.MaxSpot = f.Spot
		}
	}

	return s
}
