package aggregate

import (
	"math"
	"testing"

	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/testutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

func TestFlatTopSingleFrame(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 0, Metric: 1.0, Frames: []string{"m!N.C.Foo()"}},
		{TimeMs: 100, Metric: 1.0, Frames: []string{"m!N.C.Foo()"}},
		{TimeMs: 200, Metric: 1.0, Frames: []string{"m!N.C.Foo()"}},
	})

	result, err := FlatTop(src, Options{GroupBy: frameutil.GroupByMethod})
	if err != nil {
		t.Fatal(err)
	}

	counts := make([]int64, 20)
	counts[0] = 1
	counts[2] = 1
	counts[4] = 1
	want := Result{
		TotalMetric:  3,
		FromMs:       0,
		ToMs:         1000,
		BucketSizeMs: 50,
		BucketCount:  20,
		Entries: []Entry{
			{
				Name:             "m!N.C.Foo()",
				ExclusiveMetric:  3,
				InclusiveMetric:  3,
				ExclusivePercent: 100,
				BucketCounts:     counts,
			},
		},
	}
	if diff := testutil.Diff(result, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestFlatTopPseudoLeaf(t *testing.T) {
	// The first real frame after the pseudo leaf takes the exclusive
	// charge.
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 10, Metric: 2.0, Frames: []string{"CPU_TIME", "m!A.B.Leaf()", "m!A.B.Root()"}},
	})
	result, err := FlatTop(src, Options{GroupBy: frameutil.GroupByMethod})
	if err != nil {
		t.Fatal(err)
	}

	byName := make(map[string]Entry)
	for _, e := range result.Entries {
		byName[e.Name] = e
	}
	if got := byName["m!A.B.Leaf()"].ExclusiveMetric; got != 2 {
		t.Errorf("leaf exclusive = %v, want 2", got)
	}
	if got := byName["m!A.B.Root()"].ExclusiveMetric; got != 0 {
		t.Errorf("root exclusive = %v, want 0", got)
	}
	if got := byName["m!A.B.Root()"].InclusiveMetric; got != 2 {
		t.Errorf("root inclusive = %v, want 2", got)
	}
	if _, ok := byName["CPU_TIME"]; ok {
		t.Error("pseudo frame must not appear in flat aggregation")
	}
}

func TestFlatTopRecursionDedup(t *testing.T) {
	// A frame occurring twice on one stack is charged inclusively once.
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 10, Metric: 2.0, Frames: []string{"m!A.B.F()", "m!A.B.G()", "m!A.B.F()"}},
	})
	result, err := FlatTop(src, Options{GroupBy: frameutil.GroupByMethod})
	if err != nil {
		t.Fatal(err)
	}

	for _, e := range result.Entries {
		if e.InclusiveMetric != 2 {
			t.Errorf("%s inclusive = %v, want 2", e.Name, e.InclusiveMetric)
		}
	}
}

func TestFlatTopExclusiveConservation(t *testing.T) {
	samples := []tracesource.StackSample{
		{TimeMs: 10, Metric: 1.5, Frames: []string{"m!A.B.F()", "m!A.B.G()"}},
		{TimeMs: 400, Metric: 0.25, Frames: []string{"m!A.B.G()"}},
		{TimeMs: 600, Metric: 3.75, Frames: []string{"CPU_TIME", "m!C.D.H()"}},
		{TimeMs: 900, Metric: 1.0, Frames: []string{"m!A.B.F()", "m!C.D.H()", "m!A.B.G()"}},
	}
	src := tracesource.NewMemorySource(1000, nil, samples)
	result, err := FlatTop(src, Options{Top: 100, GroupBy: frameutil.GroupByMethod})
	if err != nil {
		t.Fatal(err)
	}

	var total, exclusiveSum float64
	for _, s := range samples {
		total += s.Metric
	}
	for _, e := range result.Entries {
		exclusiveSum += e.ExclusiveMetric
	}
	if math.Abs(total-exclusiveSum) > 1e-9 {
		t.Errorf("exclusive sum = %v, want %v", exclusiveSum, total)
	}
}

func TestFlatTopSortAndTruncate(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 10, Metric: 1.0, Frames: []string{"m!A.B.Small()"}},
		{TimeMs: 20, Metric: 5.0, Frames: []string{"m!A.B.Big()"}},
		{TimeMs: 30, Metric: 2.0, Frames: []string{"m!A.B.Mid()"}},
	})
	result, err := FlatTop(src, Options{Top: 2, GroupBy: frameutil.GroupByMethod})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.Entries))
	}
	if result.Entries[0].Name != "m!A.B.Big()" || result.Entries[1].Name != "m!A.B.Mid()" {
		t.Errorf("unexpected order: %s, %s", result.Entries[0].Name, result.Entries[1].Name)
	}
}

func TestFlatTopZeroDurationWindow(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 100, Metric: 1.0, Frames: []string{"m!A.B.F()"}},
	})
	result, err := FlatTop(src, Options{
		GroupBy: frameutil.GroupByMethod,
		Window:  &tracesource.TimeWindow{FromMs: 100, ToMs: 100},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}
	if got := result.Entries[0].BucketCounts[0]; got != 1 {
		t.Errorf("bucket 0 count = %d, want 1", got)
	}
}

func TestFlatTopLeavesCallerWindowUntouched(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 100, Metric: 1.0, Frames: []string{"m!A.B.F()"}},
	})
	window := &tracesource.TimeWindow{FromMs: 500, ToMs: 100}
	result, err := FlatTop(src, Options{GroupBy: frameutil.GroupByMethod, Window: window})
	if err != nil {
		t.Fatal(err)
	}

	// The inverted window is normalized on a copy, not in place.
	if window.FromMs != 500 || window.ToMs != 100 {
		t.Errorf("caller window mutated to [%v, %v]", window.FromMs, window.ToMs)
	}
	if result.FromMs != 100 || result.ToMs != 500 {
		t.Errorf("result window = [%v, %v], want [100, 500]", result.FromMs, result.ToMs)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}
}

func TestFlatTopGroupByModule(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 10, Metric: 1.0, Frames: []string{"mod!A.B.F()", "mod!A.B.G()"}},
		{TimeMs: 20, Metric: 1.0, Frames: []string{"other!C.D.H()"}},
	})
	result, err := FlatTop(src, Options{GroupBy: frameutil.GroupByModule})
	if err != nil {
		t.Fatal(err)
	}

	byName := make(map[string]Entry)
	for _, e := range result.Entries {
		byName[e.Name] = e
	}
	if got := byName["mod"].InclusiveMetric; got != 1 {
		t.Errorf("mod inclusive = %v, want 1", got)
	}
	if got := byName["mod"].ExclusiveMetric; got != 1 {
		t.Errorf("mod exclusive = %v, want 1", got)
	}
	if got := byName["other"].ExclusiveMetric; got != 1 {
		t.Errorf("other exclusive = %v, want 1", got)
	}
}
