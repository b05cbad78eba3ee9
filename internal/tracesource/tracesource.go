// Package tracesource defines the interface the aggregation engine consumes:
// a restartable stream of timestamped runtime events and stack samples
// produced by an external trace decoder. The engine never parses a trace
// binary format itself.
package tracesource

import (
	"sort"
	"strconv"
)

type (
	// RuntimeEvent is one decoded runtime event with its named payload.
	RuntimeEvent struct {
		TimeMs    float64        `json:"time_ms"`
		Provider  string         `json:"provider"`
		Name      string         `json:"name"`
		ProcessID int            `json:"process_id"`
		ThreadID  int            `json:"thread_id"`
		Payload   map[string]any `json:"payload,omitempty"`
	}

	// StackSample is one stack capture carrying a metric weight and frame
	// names ordered leaf to root.
	StackSample struct {
		TimeMs float64  `json:"time_ms"`
		Metric float64  `json:"metric"`
		Frames []string `json:"frames"`
	}

	// TimeWindow is an inclusive [FromMs, ToMs] filter.
	TimeWindow struct {
		FromMs float64
		ToMs   float64
	}

	// Source is the stream handle an open trace session owns. Both
	// iterations are restartable: every call starts from the beginning.
	// Iteration stops early when fn returns false.
	Source interface {
		DurationMs() float64
		ForEachEvent(fn func(RuntimeEvent) bool) error
		ForEachSample(window *TimeWindow, fn func(StackSample) bool) error
	}
)

func (w TimeWindow) Contains(t float64) bool {
	return t >= w.FromMs && t <= w.ToMs
}

// FieldString returns the named payload field rendered as a string.
func (e RuntimeEvent) FieldString(name string) (string, bool) {
	v, ok := e.Payload[name]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// FieldFloat returns the named payload field converted to a float64.
// Conversion failure is reported as absence so a malformed record can be
// skipped without aborting the whole scan.
func (e RuntimeEvent) FieldFloat(name string) (float64, bool) {
	v, ok := e.Payload[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FieldBool returns the named payload field as a bool.
func (e RuntimeEvent) FieldBool(name string) (bool, bool) {
	v, ok := e.Payload[name]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(b)
		if err != nil {
			return false, false
		}
		return p, true
	}
	return false, false
}

// FieldNames returns the payload field names in deterministic order, for
// fuzzy field-name matching.
func (e RuntimeEvent) FieldNames() []string {
	names := make([]string, 0, len(e.Payload))
	for name := range e.Payload {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
