package tracesource

import "testing"

func TestArtifactSourceInfersDuration(t *testing.T) {
	a := Artifact{
		Events:  []RuntimeEvent{{TimeMs: 500, Name: "GC/Start"}},
		Samples: []StackSample{{TimeMs: 750, Metric: 1, Frames: []string{"m!App.Work()"}}},
	}
	if got := a.Source().DurationMs(); got != 750 {
		t.Errorf("inferred duration = %v, want 750", got)
	}

	a.DurationMs = 1000
	if got := a.Source().DurationMs(); got != 1000 {
		t.Errorf("declared duration = %v, want 1000", got)
	}
}

func TestForEachSampleWindow(t *testing.T) {
	src := NewMemorySource(1000, nil, []StackSample{
		{TimeMs: 100, Metric: 1, Frames: []string{"a"}},
		{TimeMs: 500, Metric: 1, Frames: []string{"b"}},
		{TimeMs: 900, Metric: 1, Frames: []string{"c"}},
	})

	var seen []string
	err := src.ForEachSample(&TimeWindow{FromMs: 100, ToMs: 500}, func(s StackSample) bool {
		seen = append(seen, s.Frames[0])
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	// Window bounds are inclusive on both ends.
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("seen = %v, want [a b]", seen)
	}
}

func TestForEachStopsEarly(t *testing.T) {
	src := NewMemorySource(1000, []RuntimeEvent{
		{TimeMs: 1}, {TimeMs: 2}, {TimeMs: 3},
	}, nil)

	count := 0
	err := src.ForEachEvent(func(RuntimeEvent) bool {
		count++
		return count < 2
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("visited %d events, want 2", count)
	}
}

func TestFieldConversions(t *testing.T) {
	e := RuntimeEvent{Payload: map[string]any{
		"str":    "hello",
		"num":    42.5,
		"numStr": "17",
		"flag":   true,
		"bad":    []any{"not scalar"},
	}}

	if v, ok := e.FieldString("str"); !ok || v != "hello" {
		t.Errorf("FieldString(str) = %q, %v", v, ok)
	}
	if v, ok := e.FieldString("num"); !ok || v != "42.5" {
		t.Errorf("FieldString(num) = %q, %v", v, ok)
	}
	if v, ok := e.FieldFloat("num"); !ok || v != 42.5 {
		t.Errorf("FieldFloat(num) = %v, %v", v, ok)
	}
	if v, ok := e.FieldFloat("numStr"); !ok || v != 17 {
		t.Errorf("FieldFloat(numStr) = %v, %v", v, ok)
	}
	if _, ok := e.FieldFloat("str"); ok {
		t.Error("FieldFloat(str) must report absence")
	}
	if _, ok := e.FieldFloat("bad"); ok {
		t.Error("FieldFloat(bad) must report absence")
	}
	if v, ok := e.FieldBool("flag"); !ok || !v {
		t.Errorf("FieldBool(flag) = %v, %v", v, ok)
	}
	if _, ok := e.FieldFloat("missing"); ok {
		t.Error("missing field must report absence")
	}

	names := e.FieldNames()
	want := []string{"bad", "flag", "num", "numStr", "str"}
	if len(names) != len(want) {
		t.Fatalf("FieldNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("FieldNames() = %v, want %v", names, want)
		}
	}
}
