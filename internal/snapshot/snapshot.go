// Package snapshot composes independent per-category queries into one
// point-in-time view around a timestamp.
package snapshot

import (
	"sort"

	"github.com/tracelens/tracelens/internal/aggregate"
	"github.com/tracelens/tracelens/internal/eventutil"
	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/mathutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

const (
	topCPUEntries = 5
	maxExceptions = 10
	topEventTypes = 15
)

type (
	GCInfo struct {
		TimeMs     float64 `json:"time_ms"`
		PauseMs    float64 `json:"pause_ms"`
		Generation int     `json:"generation"`
	}

	GCSummary struct {
		Count        int      `json:"count"`
		TotalPauseMs float64  `json:"total_pause_ms"`
		MaxPauseMs   float64  `json:"max_pause_ms"`
		Gen2         bool     `json:"gen2"`
		Events       []GCInfo `json:"events"`
	}

	ExceptionInfo struct {
		TimeMs   float64 `json:"time_ms"`
		Type     string  `json:"type"`
		ThreadID int     `json:"thread_id"`
	}

	EventTypeCount struct {
		Provider string `json:"provider"`
		Name     string `json:"name"`
		Count    int    `json:"count"`
	}

	// Snapshot is the composite view. Each part is omitted when no data
	// fell inside the window.
	Snapshot struct {
		AtMs       float64           `json:"at_ms"`
		WindowMs   float64           `json:"window_ms"`
		FromMs     float64           `json:"from_ms"`
		ToMs       float64           `json:"to_ms"`
		GC         *GCSummary        `json:"gc,omitempty"`
		CPU        []aggregate.Entry `json:"cpu,omitempty"`
		Exceptions []ExceptionInfo   `json:"exceptions,omitempty"`
		EventTypes []EventTypeCount  `json:"event_types,omitempty"`
	}
)

// At builds the snapshot for the symmetric window [at-window, at+window],
// clamped to the trace bounds. The four sub-queries are independent; there
// is no cross-filtering between categories.
func At(src tracesource.Source, atMs, windowMs float64) (Snapshot, error) {
	from := atMs - windowMs
	if from < 0 {
		from = 0
	}
	to := atMs + windowMs
	if d := src.DurationMs(); to > d {
		to = d
	}
	window := &tracesource.TimeWindow{FromMs: from, ToMs: to}

	snap := Snapshot{
		AtMs:     mathutil.Round2(atMs),
		WindowMs: mathutil.Round2(windowMs),
		FromMs:   mathutil.Round2(from),
		ToMs:     mathutil.Round2(to),
	}

	gc, exceptions, eventTypes, err := scanEvents(src, window)
	if err != nil {
		return Snapshot{}, err
	}
	snap.GC = gc
	snap.Exceptions = exceptions
	snap.EventTypes = eventTypes

	flat, err := aggregate.FlatTop(src, aggregate.Options{
		Top:     topCPUEntries,
		GroupBy: frameutil.GroupByMethod,
		Window:  window,
	})
	if err != nil {
		return Snapshot{}, err
	}
	if len(flat.Entries) > 0 {
		snap.CPU = flat.Entries
	}
	return snap, nil
}

func scanEvents(src tracesource.Source, window *tracesource.TimeWindow) (*GCSummary, []ExceptionInfo, []EventTypeCount, error) {
	var gc *GCSummary
	var exceptions []ExceptionInfo
	type typeKey struct{ provider, name string }
	typeCounts := make(map[typeKey]int)

	err := src.ForEachEvent(func(e tracesource.RuntimeEvent) bool {
		if !window.Contains(e.TimeMs) {
			return true
		}
		typeCounts[typeKey{e.Provider, e.Name}]++

		if eventutil.IsGCEvent(e) {
			if gc == nil {
				gc = &GCSummary{}
			}
			gc.Count++
			info := GCInfo{
				TimeMs:     mathutil.Round2(e.TimeMs),
				Generation: eventutil.GCGeneration(e),
			}
			if pause, ok := eventutil.GCPauseMs(e); ok {
				info.PauseMs = mathutil.Round2(pause)
				gc.TotalPauseMs += pause
				if pause > gc.MaxPauseMs {
					gc.MaxPauseMs = pause
				}
			}
			if info.Generation >= 2 {
				gc.Gen2 = true
			}
			gc.Events = append(gc.Events, info)
		}

		if eventutil.IsExceptionThrow(e) && len(exceptions) < maxExceptions {
			exceptions = append(exceptions, ExceptionInfo{
				TimeMs:   mathutil.Round2(e.TimeMs),
				Type:     eventutil.ExceptionType(e),
				ThreadID: e.ThreadID,
			})
		}
		return true
	})
	if err != nil {
		return nil, nil, nil, err
	}

	if gc != nil {
		gc.TotalPauseMs = mathutil.Round2(gc.TotalPauseMs)
		gc.MaxPauseMs = mathutil.Round2(gc.MaxPauseMs)
	}

	var eventTypes []EventTypeCount
	for k, c := range typeCounts {
		eventTypes = append(eventTypes, EventTypeCount{Provider: k.provider, Name: k.name, Count: c})
	}
	sort.SliceStable(eventTypes, func(i, j int) bool {
		if eventTypes[i].Count == eventTypes[j].Count {
			if eventTypes[i].Provider == eventTypes[j].Provider {
				return eventTypes[i].Name < eventTypes[j].Name
			}
			return eventTypes[i].Provider < eventTypes[j].Provider
		}
		return eventTypes[i].Count > eventTypes[j].Count
	})
	if len(eventTypes) > topEventTypes {
		eventTypes = eventTypes[:topEventTypes]
	}
	return gc, exceptions, eventTypes, nil
}
