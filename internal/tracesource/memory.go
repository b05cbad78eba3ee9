package tracesource

type (
	// Artifact is the pre-symbolized analysis artifact an external decoder
	// produces for a trace. It is the document stored in the artifact
	// bucket and the only concrete input the service knows how to open.
	Artifact struct {
		DurationMs float64        `json:"duration_ms"`
		Events     []RuntimeEvent `json:"events"`
		Samples    []StackSample  `json:"samples"`
	}

	// MemorySource serves a fully materialized artifact.
	MemorySource struct {
		durationMs float64
		events     []RuntimeEvent
		samples    []StackSample
	}
)

// Source returns a stream handle over the artifact. When the artifact does
// not declare a duration, the last observed timestamp is used.
func (a *Artifact) Source() *MemorySource {
	d := a.DurationMs
	for _, e := range a.Events {
		if e.TimeMs > d {
			d = e.TimeMs
		}
	}
	for _, s := range a.Samples {
		if s.TimeMs > d {
			d = s.TimeMs
		}
	}
	return &MemorySource{
		durationMs: d,
		events:     a.Events,
		samples:    a.Samples,
	}
}

func NewMemorySource(durationMs float64, events []RuntimeEvent, samples []StackSample) *MemorySource {
	return &MemorySource{durationMs: durationMs, events: events, samples: samples}
}

func (m *MemorySource) DurationMs() float64 {
	return m.durationMs
}

func (m *MemorySource) ForEachEvent(fn func(RuntimeEvent) bool) error {
	for _, e := range m.events {
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func (m *MemorySource) ForEachSample(window *TimeWindow, fn func(StackSample) bool) error {
	for _, s := range m.samples {
		if window != nil && !window.Contains(s.TimeMs) {
			continue
		}
		if !fn(s) {
			return nil
		}
	}
	return nil
}
