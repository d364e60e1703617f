package builtin

import (
	"context"
	"testing"
	"time"
)

func newInitializedDummy(t *testing.T, config map[string]any) *Dummy {
	t.Helper()
	d := &Dummy{config: config}
	if err := d.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return d
}

func TestDummyEcho(t *testing.T) {
	d := newInitializedDummy(t, map[string]any{"prefix": "Echo: "})
	result, err := d.CallTool(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.Success || result.Data != "Echo: hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDummyAdd(t *testing.T) {
	d := newInitializedDummy(t, nil)
	result, err := d.CallTool(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.Success || result.Data != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDummyAddInvalidArgs(t *testing.T) {
	d := newInitializedDummy(t, nil)
	result, err := d.CallTool(context.Background(), "add", map[string]any{"a": "not a number", "b": 3})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for invalid add arguments, got %+v", result)
	}
}

func TestDummySlowRejectsNegative(t *testing.T) {
	d := newInitializedDummy(t, nil)
	result, err := d.CallTool(context.Background(), "slow", map[string]any{"seconds": -1.0})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for negative sleep duration")
	}
}

func TestDummySlowRespectsContextCancellation(t *testing.T) {
	d := newInitializedDummy(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.CallTool(ctx, "slow", map[string]any{"seconds": 5.0})
	if err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestDummyUninitializedRejectsCalls(t *testing.T) {
	d := &Dummy{}
	result, err := d.CallTool(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure before initialize")
	}
}

func TestDummyUnknownTool(t *testing.T) {
	d := newInitializedDummy(t, nil)
	result, err := d.CallTool(context.Background(), "nope", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for unknown tool")
	}
}

func TestDummyGetToolsNames(t *testing.T) {
	d := newInitializedDummy(t, nil)
	tools := d.GetTools()
	want := map[string]bool{"echo": true, "add": true, "slow": true}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for _, tl := range tools {
		if !want[tl.Name] {
			t.Fatalf("unexpected tool %q", tl.Name)
		}
	}
}
