package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tracelens/tracelens/internal/tracesource"
)

// countingSource counts full sample scans so the test can assert how many
// times the call tree was built.
type countingSource struct {
	*tracesource.MemorySource
	scans atomic.Int64
}

func (c *countingSource) ForEachSample(window *tracesource.TimeWindow, fn func(tracesource.StackSample) bool) error {
	c.scans.Add(1)
	return c.MemorySource.ForEachSample(window, fn)
}

func TestCallTreeBuiltOnce(t *testing.T) {
	src := &countingSource{
		MemorySource: tracesource.NewMemorySource(1000, nil, []tracesource.StackSample{
			{TimeMs: 10, Metric: 1, Frames: []string{"m!App.Work()"}},
		}),
	}
	s := New(src)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := s.CallTree()
			if err != nil {
				t.Error(err)
				return
			}
			if tree.TotalMetric() != 1 {
				t.Errorf("TotalMetric() = %v, want 1", tree.TotalMetric())
			}
		}()
	}
	wg.Wait()

	if got := src.scans.Load(); got != 1 {
		t.Errorf("call tree built %d times, want 1", got)
	}

	first, _ := s.CallTree()
	second, _ := s.CallTree()
	if first != second {
		t.Error("repeated calls must return the cached tree")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := New(tracesource.NewMemorySource(1000, nil, nil))

	r.Add(s)
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	got, ok := r.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("Get(%s) = %v, %v", s.ID, got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("unknown id must not resolve")
	}

	r.Remove(s.ID)
	if r.Len() != 0 {
		t.Errorf("Len() after remove = %d, want 0", r.Len())
	}
	// Removing twice is a no-op.
	r.Remove(s.ID)
}

func TestNewSessionIDsUnique(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, nil)
	a, b := New(src), New(src)
	if a.ID == b.ID {
		t.Error("session ids must be unique")
	}
	if a.ID == "" || a.OpenedAt.IsZero() {
		t.Error("session must carry an id and open timestamp")
	}
}
