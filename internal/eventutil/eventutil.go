// Package eventutil classifies runtime events into the categories the
// timeline, snapshot and query layers aggregate over, and extracts the
// payload fields those aggregations need. Extraction is exact-field-name
// first with a fuzzy fallback; a record whose payload cannot be converted is
// reported as absent so the caller can skip it and keep scanning.
package eventutil

import (
	"strings"

	"github.com/tracelens/tracelens/internal/tracesource"
)

// LargeObjectThreshold is the byte size above which an allocation is
// classified as large when the event carries no explicit flag.
const LargeObjectThreshold = 85_000

const UnknownType = "Unknown"

// IsGCEvent reports whether the event marks the start of a garbage
// collection. Allocation ticks and the SuspendEE/RestartEE bracket events
// share the GC/ prefix but are not collections themselves.
func IsGCEvent(e tracesource.RuntimeEvent) bool {
	name := e.Name
	if name == "GC/Start" || name == "GCStart" {
		return true
	}
	if !strings.HasPrefix(name, "GC/") {
		return false
	}
	return strings.Contains(name, "Start") &&
		!strings.Contains(name, "Suspend") &&
		!strings.Contains(name, "Restart") &&
		!strings.Contains(name, "Allocation")
}

// GCPauseMs extracts the pause duration of a GC event.
func GCPauseMs(e tracesource.RuntimeEvent) (float64, bool) {
	if v, ok := e.FieldFloat("PauseDurationMSec"); ok {
		return v, true
	}
	return fuzzyFloat(e, "pause", "duration")
}

// GCGeneration extracts the collected generation, -1 when unknown.
func GCGeneration(e tracesource.RuntimeEvent) int {
	if v, ok := e.FieldFloat("Depth"); ok {
		return int(v)
	}
	if v, ok := e.FieldFloat("Generation"); ok {
		return int(v)
	}
	if v, ok := fuzzyFloat(e, "gen", "depth"); ok {
		return int(v)
	}
	return -1
}

// IsExceptionThrow reports whether the event is a genuine throw.
// Catch/finally/filter flow events share the Exception prefix and are
// excluded.
func IsExceptionThrow(e tracesource.RuntimeEvent) bool {
	name := e.Name
	if !strings.Contains(name, "Exception") {
		return false
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "catch") ||
		strings.Contains(lower, "finally") ||
		strings.Contains(lower, "filter") {
		return false
	}
	return name == "Exception" ||
		strings.Contains(lower, "throw") ||
		strings.Contains(lower, "start")
}

// ExceptionType extracts the thrown exception type name.
func ExceptionType(e tracesource.RuntimeEvent) string {
	if v, ok := e.FieldString("ExceptionType"); ok && v != "" {
		return v
	}
	if v, ok := fuzzyString(e, "type", "name"); ok && v != "" {
		return v
	}
	return UnknownType
}

// IsAllocationTick reports whether the event is a sampled allocation.
func IsAllocationTick(e tracesource.RuntimeEvent) bool {
	return strings.Contains(e.Name, "AllocationTick") ||
		strings.Contains(e.Name, "AllocationSampled")
}

// AllocationSize extracts the allocated byte size of an allocation tick.
func AllocationSize(e tracesource.RuntimeEvent) (int64, bool) {
	if v, ok := e.FieldFloat("AllocationAmount64"); ok {
		return int64(v), true
	}
	if v, ok := e.FieldFloat("AllocationAmount"); ok {
		return int64(v), true
	}
	if v, ok := fuzzyFloat(e, "size", "amount"); ok {
		return int64(v), true
	}
	return 0, false
}

// IsLargeAllocation classifies an allocation: an explicit kind flag wins,
// otherwise the size threshold applies.
func IsLargeAllocation(e tracesource.RuntimeEvent, size int64) bool {
	if v, ok := e.FieldString("AllocationKind"); ok {
		return strings.Contains(strings.ToLower(v), "large")
	}
	if v, ok := e.FieldBool("Large"); ok {
		return v
	}
	return size >= LargeObjectThreshold
}

// AllocationTypeName extracts the allocated type name.
func AllocationTypeName(e tracesource.RuntimeEvent) string {
	if v, ok := e.FieldString("TypeName"); ok && v != "" {
		return v
	}
	if v, ok := fuzzyString(e, "type"); ok && v != "" {
		return v
	}
	return UnknownType
}

// IsJITStart reports whether the event marks the start of a method
// compilation.
func IsJITStart(e tracesource.RuntimeEvent) bool {
	return strings.Contains(e.Name, "JittingStarted") ||
		strings.Contains(e.Name, "MethodJitting")
}

// JITDurationMs extracts the compilation time when the event carries one.
func JITDurationMs(e tracesource.RuntimeEvent) (float64, bool) {
	if v, ok := e.FieldFloat("MethodJitTimeMSec"); ok {
		return v, true
	}
	return fuzzyFloat(e, "time", "duration")
}

// fuzzyFloat scans payload field names in deterministic order and returns
// the first numeric field whose lowercased name contains any needle.
func fuzzyFloat(e tracesource.RuntimeEvent, needles ...string) (float64, bool) {
	for _, needle := range needles {
		for _, name := range e.FieldNames() {
			if !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			if v, ok := e.FieldFloat(name); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func fuzzyString(e tracesource.RuntimeEvent, needles ...string) (string, bool) {
	for _, needle := range needles {
		for _, name := range e.FieldNames() {
			if !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			if v, ok := e.FieldString(name); ok {
				return v, true
			}
		}
	}
	return "", false
}
