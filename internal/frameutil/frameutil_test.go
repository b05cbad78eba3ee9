package frameutil

import "testing"

func TestIsPseudoFrame(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"BROKEN", true},
		{"CPU_TIME", true},
		{"UNMANAGED_CODE_TIME", true},
		{"LAST_BLOCK", true},
		{"Threads", true},
		{"Processes", true},
		{"Thread (4242)", true},
		{"Process64 myapp (1234)", true},
		{"Process32 w3wp (99)", true},
		{"mod!A.B.C.Method()", false},
		{"some random garbage", false},
		{"ThreadPoolWorkQueue.Dispatch", false},
	}
	for _, tt := range tests {
		if got := IsPseudoFrame(tt.name); got != tt.want {
			t.Errorf("IsPseudoFrame(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGroupKey(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		mode  GroupMode
		want  string
	}{
		{"method is identity", "mod!A.B.C.Method(x)", GroupByMethod, "mod!A.B.C.Method(x)"},
		{"module before separator", "mod!A.B.C.Method(x)", GroupByModule, "mod"},
		{"module of pseudo frame", "BROKEN", GroupByModule, SentinelRuntime},
		{"module of native frame", "native_symbol", GroupByModule, SentinelNative},
		{"module of empty name", "", GroupByModule, SentinelUnknown},
		{"namespace drops class and method", "mod!A.B.C.Method(x)", GroupByNamespace, "A.B"},
		{"namespace with two segments", "mod!A.Method()", GroupByNamespace, "A"},
		{"namespace with one segment", "mod!Method()", GroupByNamespace, "Method"},
		{"namespace without module", "A.B.C.Method()", GroupByNamespace, "A.B"},
		{"namespace of pseudo frame", "Thread (12)", GroupByNamespace, SentinelRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GroupKey(tt.frame, tt.mode); got != tt.want {
				t.Errorf("GroupKey(%q, %q) = %q, want %q", tt.frame, tt.mode, got, tt.want)
			}
		})
	}
}

func TestTypeNamespace(t *testing.T) {
	tests := []struct {
		typeName string
		want     string
	}{
		{"System.String", "System"},
		{"System.Collections.Generic.List`1[System.String]", "System.Collections.Generic"},
		{"System.Collections.Generic.Dictionary`2[System.Int32,System.String]", "System.Collections.Generic"},
		{"Buffer", "Buffer"},
		{"", SentinelUnknown},
	}
	for _, tt := range tests {
		if got := TypeNamespace(tt.typeName); got != tt.want {
			t.Errorf("TypeNamespace(%q) = %q, want %q", tt.typeName, got, tt.want)
		}
	}
}
