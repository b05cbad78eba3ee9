package snapshot

import (
	"fmt"
	"testing"

	"github.com/tracelens/tracelens/internal/testutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

func TestAtGCOnly(t *testing.T) {
	src := tracesource.NewMemorySource(5000, []tracesource.RuntimeEvent{
		{TimeMs: 520, Provider: "Runtime", Name: "GC/Start", Payload: map[string]any{"PauseDurationMSec": 12.5, "Depth": 2.0}},
		{TimeMs: 3000, Provider: "Runtime", Name: "GC/Start", Payload: map[string]any{"PauseDurationMSec": 1.0}},
	}, nil)

	snap, err := At(src, 500, 100)
	if err != nil {
		t.Fatal(err)
	}

	if snap.FromMs != 400 || snap.ToMs != 600 {
		t.Fatalf("window = [%v, %v], want [400, 600]", snap.FromMs, snap.ToMs)
	}
	wantGC := &GCSummary{
		Count:        1,
		TotalPauseMs: 12.5,
		MaxPauseMs:   12.5,
		Gen2:         true,
		Events:       []GCInfo{{TimeMs: 520, PauseMs: 12.5, Generation: 2}},
	}
	if diff := testutil.Diff(snap.GC, wantGC); diff != "" {
		t.Fatalf("GC mismatch: got - want +\n%s", diff)
	}
	// Empty categories are omitted, not zero-valued.
	if snap.CPU != nil || snap.Exceptions != nil {
		t.Error("categories without data must be omitted")
	}
	wantTypes := []EventTypeCount{{Provider: "Runtime", Name: "GC/Start", Count: 1}}
	if diff := testutil.Diff(snap.EventTypes, wantTypes); diff != "" {
		t.Fatalf("event types mismatch: got - want +\n%s", diff)
	}
}

func TestAtClampsToTraceBounds(t *testing.T) {
	src := tracesource.NewMemorySource(1000, nil, nil)
	snap, err := At(src, 50, 200)
	if err != nil {
		t.Fatal(err)
	}
	if snap.FromMs != 0 || snap.ToMs != 250 {
		t.Errorf("window = [%v, %v], want [0, 250]", snap.FromMs, snap.ToMs)
	}

	snap, err = At(src, 950, 200)
	if err != nil {
		t.Fatal(err)
	}
	if snap.FromMs != 750 || snap.ToMs != 1000 {
		t.Errorf("window = [%v, %v], want [750, 1000]", snap.FromMs, snap.ToMs)
	}
}

func TestAtCPUTopFive(t *testing.T) {
	samples := make([]tracesource.StackSample, 0, 8)
	for i := 0; i < 8; i++ {
		samples = append(samples, tracesource.StackSample{
			TimeMs: 500,
			Metric: float64(i + 1),
			Frames: []string{fmt.Sprintf("m!App.F%d()", i)},
		})
	}
	src := tracesource.NewMemorySource(1000, nil, samples)

	snap, err := At(src, 500, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.CPU) != 5 {
		t.Fatalf("got %d cpu entries, want 5", len(snap.CPU))
	}
	if snap.CPU[0].Name != "m!App.F7()" {
		t.Errorf("top cpu entry = %s, want m!App.F7()", snap.CPU[0].Name)
	}
}

func TestAtExceptionCap(t *testing.T) {
	events := make([]tracesource.RuntimeEvent, 0, 12)
	for i := 0; i < 12; i++ {
		events = append(events, tracesource.RuntimeEvent{
			TimeMs:   500,
			Name:     "Exception/Start",
			ThreadID: i,
			Payload:  map[string]any{"ExceptionType": "System.Exception"},
		})
	}
	src := tracesource.NewMemorySource(1000, events, nil)

	snap, err := At(src, 500, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Exceptions) != 10 {
		t.Fatalf("got %d exceptions, want the cap of 10", len(snap.Exceptions))
	}
	if snap.Exceptions[0].Type != "System.Exception" || snap.Exceptions[0].ThreadID != 0 {
		t.Errorf("unexpected first exception %+v", snap.Exceptions[0])
	}
}

func TestAtEventTypeCap(t *testing.T) {
	events := make([]tracesource.RuntimeEvent, 0, 20)
	for i := 0; i < 20; i++ {
		events = append(events, tracesource.RuntimeEvent{
			TimeMs:   500,
			Provider: "Custom",
			Name:     fmt.Sprintf("Event%02d", i),
		})
	}
	src := tracesource.NewMemorySource(1000, events, nil)

	snap, err := At(src, 500, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.EventTypes) != 15 {
		t.Fatalf("got %d event types, want the cap of 15", len(snap.EventTypes))
	}
}
