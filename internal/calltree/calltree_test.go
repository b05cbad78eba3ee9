package calltree

import (
	"testing"

	"github.com/tracelens/tracelens/internal/tracesource"
)

func buildTestTree(t *testing.T, samples []tracesource.StackSample) *Tree {
	t.Helper()
	tree, err := Build(tracesource.NewMemorySource(1000, nil, samples), nil)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func findChild(n *Node, name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestBuildSharedPrefix(t *testing.T) {
	tree := buildTestTree(t, []tracesource.StackSample{
		{TimeMs: 10, Metric: 1, Frames: []string{"m!App.Leaf1()", "m!App.Mid()", "m!App.Root()"}},
		{TimeMs: 20, Metric: 1, Frames: []string{"m!App.Leaf2()", "m!App.Mid()", "m!App.Root()"}},
	})

	if got := tree.TotalMetric(); got != 2 {
		t.Fatalf("TotalMetric() = %v, want 2", got)
	}
	root := findChild(tree.Root, "m!App.Root()")
	if root == nil {
		t.Fatal("missing m!App.Root() under ROOT")
	}
	mid := findChild(root, "m!App.Mid()")
	if mid == nil {
		t.Fatal("missing m!App.Mid() under m!App.Root()")
	}
	if mid.InclusiveMetric != 2 || mid.ExclusiveMetric != 0 {
		t.Errorf("mid inclusive/exclusive = %v/%v, want 2/0", mid.InclusiveMetric, mid.ExclusiveMetric)
	}
	if mid.InclusiveCount != 2 {
		t.Errorf("mid inclusive count = %d, want 2", mid.InclusiveCount)
	}
	if len(mid.Children) != 2 {
		t.Fatalf("mid has %d children, want 2", len(mid.Children))
	}
	for _, name := range []string{"m!App.Leaf1()", "m!App.Leaf2()"} {
		leaf := findChild(mid, name)
		if leaf == nil {
			t.Fatalf("missing leaf %s", name)
		}
		if leaf.InclusiveMetric != 1 || leaf.ExclusiveMetric != 1 {
			t.Errorf("%s inclusive/exclusive = %v/%v, want 1/1", name, leaf.InclusiveMetric, leaf.ExclusiveMetric)
		}
		if leaf.Parent != mid {
			t.Errorf("%s parent mismatch", name)
		}
	}
}

func TestBuildKeepsPseudoFrames(t *testing.T) {
	// The raw tree keeps pseudo frames; only navigation folds them.
	tree := buildTestTree(t, []tracesource.StackSample{
		{TimeMs: 10, Metric: 1, Frames: []string{"m!App.Work()", "CPU_TIME", "Thread (42)"}},
	})

	thread := findChild(tree.Root, "Thread (42)")
	if thread == nil {
		t.Fatal("pseudo thread frame must stay in the raw tree")
	}
	cpu := findChild(thread, "CPU_TIME")
	if cpu == nil {
		t.Fatal("pseudo CPU_TIME frame must stay in the raw tree")
	}
	if findChild(cpu, "m!App.Work()") == nil {
		t.Fatal("missing real frame under pseudo chain")
	}
}

func TestBuildWindowFilter(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
		{TimeMs: 100, Metric: 1, Frames: []string{"m!App.In()"}},
		{TimeMs: 900, Metric: 1, Frames: []string{"m!App.Out()"}},
	})
	tree, err := Build(src, &tracesource.TimeWindow{FromMs: 0, ToMs: 500})
	if err != nil {
		t.Fatal(err)
	}
	if tree.TotalMetric() != 1 {
		t.Errorf("TotalMetric() = %v, want 1", tree.TotalMetric())
	}
	if findChild(tree.Root, "m!App.Out()") != nil {
		t.Error("sample outside the window must be excluded")
	}
}

func TestTotalMetricNilSafe(t *testing.T) {
	var tree *Tree
	if got := tree.TotalMetric(); got != 0 {
		t.Errorf("TotalMetric() on nil tree = %v, want 0", got)
	}
}
