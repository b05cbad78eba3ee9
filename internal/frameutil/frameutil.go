// Package frameutil classifies raw frame names and derives grouping keys
// from them. Frame names follow the "module!Namespace.Class.Method(args)"
// convention; anything else is either a pseudo frame emitted by the stack
// walker or an unsymbolicated native address.
package frameutil

import "strings"

type GroupMode string

const (
	GroupByMethod    GroupMode = "method"
	GroupByModule    GroupMode = "module"
	GroupByNamespace GroupMode = "namespace"
)

const (
	SentinelRuntime = "[Runtime]"
	SentinelNative  = "[Native/Unknown]"
	SentinelUnknown = "[Unknown]"
)

// Pseudo frames the stack walker inserts to mark thread/process boundaries,
// broken stacks and unmanaged/CPU time accounting.
var pseudoFrames = map[string]struct{}{
	"BROKEN":              {},
	"CPU_TIME":            {},
	"UNMANAGED_CODE_TIME": {},
	"LAST_BLOCK":          {},
	"Threads":             {},
	"Processes":           {},
}

var pseudoPrefixes = []string{
	"Thread (",
	"Process32 ",
	"Process64 ",
}

// IsPseudoFrame reports whether name is a synthetic stack-walk entry rather
// than a real call site. Unrecognized garbage is treated as a real frame.
func IsPseudoFrame(name string) bool {
	if name == "" {
		return true
	}
	if _, ok := pseudoFrames[name]; ok {
		return true
	}
	for _, p := range pseudoPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// GroupKey derives the grouping key for a frame name. It is a pure function
// shared by flat aggregation, call-tree grouping and allocation grouping.
func GroupKey(name string, mode GroupMode) string {
	switch mode {
	case GroupByModule:
		return moduleOf(name)
	case GroupByNamespace:
		return namespaceOf(name)
	default:
		return name
	}
}

func moduleOf(name string) string {
	if name == "" {
		return SentinelUnknown
	}
	if IsPseudoFrame(name) {
		return SentinelRuntime
	}
	if i := strings.Index(name, "!"); i >= 0 {
		if i == 0 {
			return SentinelUnknown
		}
		return name[:i]
	}
	return SentinelNative
}

func namespaceOf(name string) string {
	if IsPseudoFrame(name) {
		return SentinelRuntime
	}
	s := name
	if i := strings.Index(s, "!"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return SentinelUnknown
	}
	parts := strings.Split(s, ".")
	if len(parts) <= 2 {
		// Not enough segments to carry a namespace, keep the first one.
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-2], ".")
}

// TypeNamespace is the grouping variant for allocation type names: generic
// arity and generic argument brackets are stripped, then everything before
// the last dot is kept.
func TypeNamespace(typeName string) string {
	t := typeName
	if i := strings.IndexAny(t, "[<"); i >= 0 {
		t = t[:i]
	}
	if i := strings.Index(t, "`"); i >= 0 {
		t = t[:i]
	}
	if t == "" {
		return SentinelUnknown
	}
	if i := strings.LastIndex(t, "."); i > 0 {
		return t[:i]
	}
	return t
}
