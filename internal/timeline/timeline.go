// Package timeline buckets heterogeneous event streams into time-aligned
// lanes sharing one grid, the basis for multi-category correlation views.
package timeline

import (
	"github.com/tracelens/tracelens/internal/eventutil"
	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/mathutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

const (
	MinBucketCount = 5
	MaxBucketCount = 200
)

// Lane names accepted by Correlate.
const (
	LaneGC         = "gc"
	LaneCPU        = "cpu"
	LaneExceptions = "exceptions"
	LaneAlloc      = "alloc"
	LaneJIT        = "jit"
	LaneEvents     = "events"
)

type (
	// Grid is the shared bucket axis: bucket i covers
	// [FromMs + i*BucketSizeMs, FromMs + (i+1)*BucketSizeMs).
	Grid struct {
		FromMs       float64 `json:"from_ms"`
		ToMs         float64 `json:"to_ms"`
		BucketSizeMs float64 `json:"bucket_size_ms"`
		BucketCount  int     `json:"bucket_count"`
	}

	GCBucket struct {
		Count      int     `json:"count"`
		PauseMs    float64 `json:"pause_ms"`
		MaxPauseMs float64 `json:"max_pause_ms"`
		Gen2       bool    `json:"gen2"`
	}

	CPUBucket struct {
		Samples  int64  `json:"samples"`
		TopFrame string `json:"top_frame,omitempty"`
	}

	ExceptionBucket struct {
		Count   int    `json:"count"`
		TopType string `json:"top_type,omitempty"`
	}

	AllocBucket struct {
		Count      int   `json:"count"`
		Bytes      int64 `json:"bytes"`
		LargeCount int   `json:"large_count"`
	}

	JITBucket struct {
		Count int     `json:"count"`
		JitMs float64 `json:"jit_ms"`
	}

	EventBucket struct {
		Count int `json:"count"`
	}

	Lane[T any] struct {
		Name    string `json:"name"`
		Buckets []T    `json:"buckets"`
	}

	// Timeline holds the requested lanes aligned to one grid. Lanes that
	// were not requested are absent.
	Timeline struct {
		Grid       Grid                   `json:"grid"`
		GC         *Lane[GCBucket]        `json:"gc,omitempty"`
		CPU        *Lane[CPUBucket]       `json:"cpu,omitempty"`
		Exceptions *Lane[ExceptionBucket] `json:"exceptions,omitempty"`
		Alloc      *Lane[AllocBucket]     `json:"alloc,omitempty"`
		JIT        *Lane[JITBucket]       `json:"jit,omitempty"`
		Events     *Lane[EventBucket]     `json:"events,omitempty"`
	}
)

// NewGrid clamps the bucket count into [5, 200] and swaps an inverted
// window rather than rejecting it.
func NewGrid(fromMs, toMs float64, bucketCount int) Grid {
	if toMs < fromMs {
		fromMs, toMs = toMs, fromMs
	}
	n := mathutil.Clamp(bucketCount, MinBucketCount, MaxBucketCount)
	size := 0.0
	if toMs > fromMs {
		size = (toMs - fromMs) / float64(n)
	}
	return Grid{
		FromMs:       mathutil.Round2(fromMs),
		ToMs:         mathutil.Round2(toMs),
		BucketSizeMs: mathutil.Round2(size),
		BucketCount:  n,
	}
}

func (g Grid) index(t float64) int {
	return mathutil.BucketIndex(t, g.FromMs, g.ToMs, g.BucketCount)
}

func (g Grid) window() *tracesource.TimeWindow {
	return &tracesource.TimeWindow{FromMs: g.FromMs, ToMs: g.ToMs}
}

// Correlate builds the requested lanes over a shared grid. The event stream
// is scanned once for all event-backed lanes; the sample stream is scanned
// only when the cpu lane was requested. Unknown lane names are ignored.
func Correlate(src tracesource.Source, fromMs, toMs float64, bucketCount int, lanes []string) (Timeline, error) {
	grid := NewGrid(fromMs, toMs, bucketCount)
	tl := Timeline{Grid: grid}

	want := make(map[string]bool, len(lanes))
	for _, l := range lanes {
		want[l] = true
	}

	var (
		gc         []GCBucket
		exceptions []ExceptionBucket
		alloc      []AllocBucket
		jit        []JITBucket
		events     []EventBucket
		excTypes   []map[string]int
	)
	if want[LaneGC] {
		gc = make([]GCBucket, grid.BucketCount)
	}
	if want[LaneExceptions] {
		exceptions = make([]ExceptionBucket, grid.BucketCount)
		excTypes = make([]map[string]int, grid.BucketCount)
	}
	if want[LaneAlloc] {
		alloc = make([]AllocBucket, grid.BucketCount)
	}
	if want[LaneJIT] {
		jit = make([]JITBucket, grid.BucketCount)
	}
	if want[LaneEvents] {
		events = make([]EventBucket, grid.BucketCount)
	}

	window := grid.window()
	if gc != nil || exceptions != nil || alloc != nil || jit != nil || events != nil {
		err := src.ForEachEvent(func(e tracesource.RuntimeEvent) bool {
			if !window.Contains(e.TimeMs) {
				return true
			}
			i := grid.index(e.TimeMs)
			if events != nil {
				events[i].Count++
			}
			if gc != nil && eventutil.IsGCEvent(e) {
				b := &gc[i]
				b.Count++
				// A pause longer than the bucket is still attributed
				// wholly to its start bucket.
				if pause, ok := eventutil.GCPauseMs(e); ok {
					b.PauseMs += pause
					if pause > b.MaxPauseMs {
						b.MaxPauseMs = pause
					}
				}
				if eventutil.GCGeneration(e) >= 2 {
					b.Gen2 = true
				}
			}
			if exceptions != nil && eventutil.IsExceptionThrow(e) {
				exceptions[i].Count++
				if excTypes[i] == nil {
					excTypes[i] = make(map[string]int, 4)
				}
				excTypes[i][eventutil.ExceptionType(e)]++
			}
			if alloc != nil && eventutil.IsAllocationTick(e) {
				size, ok := eventutil.AllocationSize(e)
				if !ok {
					// Malformed payload: skip the record, keep scanning.
					return true
				}
				b := &alloc[i]
				b.Count++
				b.Bytes += size
				if eventutil.IsLargeAllocation(e, size) {
					b.LargeCount++
				}
			}
			if jit != nil && eventutil.IsJITStart(e) {
				jit[i].Count++
				if d, ok := eventutil.JITDurationMs(e); ok {
					jit[i].JitMs += d
				}
			}
			return true
		})
		if err != nil {
			return Timeline{}, err
		}
	}

	if want[LaneCPU] {
		cpu, err := cpuLane(src, grid)
		if err != nil {
			return Timeline{}, err
		}
		tl.CPU = &Lane[CPUBucket]{Name: LaneCPU, Buckets: cpu}
	}

	if gc != nil {
		for i := range gc {
			gc[i].PauseMs = mathutil.Round2(gc[i].PauseMs)
			gc[i].MaxPauseMs = mathutil.Round2(gc[i].MaxPauseMs)
		}
		tl.GC = &Lane[GCBucket]{Name: LaneGC, Buckets: gc}
	}
	if exceptions != nil {
		for i := range exceptions {
			exceptions[i].TopType = mostFrequent(excTypes[i])
		}
		tl.Exceptions = &Lane[ExceptionBucket]{Name: LaneExceptions, Buckets: exceptions}
	}
	if alloc != nil {
		tl.Alloc = &Lane[AllocBucket]{Name: LaneAlloc, Buckets: alloc}
	}
	if jit != nil {
		for i := range jit {
			jit[i].JitMs = mathutil.Round2(jit[i].JitMs)
		}
		tl.JIT = &Lane[JITBucket]{Name: LaneJIT, Buckets: jit}
	}
	if events != nil {
		tl.Events = &Lane[EventBucket]{Name: LaneEvents, Buckets: events}
	}
	return tl, nil
}

func cpuLane(src tracesource.Source, grid Grid) ([]CPUBucket, error) {
	buckets := make([]CPUBucket, grid.BucketCount)
	frames := make([]map[string]int, grid.BucketCount)
	err := src.ForEachSample(grid.window(), func(s tracesource.StackSample) bool {
		i := grid.index(s.TimeMs)
		buckets[i].Samples++
		if leaf, ok := leafRealFrame(s); ok {
			if frames[i] == nil {
				frames[i] = make(map[string]int, 8)
			}
			frames[i][leaf]++
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		buckets[i].TopFrame = mostFrequent(frames[i])
	}
	return buckets, nil
}

func leafRealFrame(s tracesource.StackSample) (string, bool) {
	for _, f := range s.Frames {
		if !frameutil.IsPseudoFrame(f) {
			return f, true
		}
	}
	return "", false
}

// mostFrequent picks the highest-count key, breaking ties by name for
// deterministic output.
func mostFrequent(counts map[string]int) string {
	best := ""
	bestCount := 0
	for name, c := range counts {
		if c > bestCount || (c == bestCount && best != "" && name < best) {
			best = name
			bestCount = c
		}
	}
	return best
}
