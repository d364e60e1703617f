package toolregistry

import (
	"testing"

	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/tool"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New(nil)
	err := r.RegisterTools("dummy", []tool.Descriptor{
		{Name: "echo"}, {Name: "add"},
	})
	if err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.GetTool("dummy.echo"); !ok {
		t.Fatalf("expected dummy.echo to be registered")
	}
}

func TestRegisterDuplicateInBatchFails(t *testing.T) {
	r := New(nil)
	err := r.RegisterTools("dummy", []tool.Descriptor{{Name: "echo"}, {Name: "echo"}})
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.ConfigInvalid {
		t.Fatalf("expected config_invalid, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected no tools registered on failure, got %d", r.Len())
	}
}

func TestRegisterExistingFQNFails(t *testing.T) {
	r := New(nil)
	if err := r.RegisterTools("dummy", []tool.Descriptor{{Name: "echo"}}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	err := r.RegisterTools("dummy", []tool.Descriptor{{Name: "echo"}})
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.ConfigInvalid {
		t.Fatalf("expected config_invalid, got %v", err)
	}
}

func TestRegisterRejectsDotInToolName(t *testing.T) {
	r := New(nil)
	err := r.RegisterTools("dummy", []tool.Descriptor{{Name: "bad.name"}})
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.ConfigInvalid {
		t.Fatalf("expected config_invalid, got %v", err)
	}
}

func TestUnregisterIsIdempotentAndFiresCallbackOnlyWhenRemoved(t *testing.T) {
	r := New(nil)
	calls := 0
	r.SetCallbacks(nil, func(plugin string) { calls++ })

	r.UnregisterPlugin("nothing-there")
	if calls != 0 {
		t.Fatalf("expected no callback for no-op unregister, got %d calls", calls)
	}

	if err := r.RegisterTools("dummy", []tool.Descriptor{{Name: "echo"}}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	r.UnregisterPlugin("dummy")
	r.UnregisterPlugin("dummy")
	if calls != 1 {
		t.Fatalf("expected exactly 1 callback, got %d", calls)
	}
	if r.Len() != 0 {
		t.Fatalf("expected registry empty after unregister, got %d", r.Len())
	}
}

func TestToolsForAndContains(t *testing.T) {
	r := New(nil)
	_ = r.RegisterTools("dummy", []tool.Descriptor{{Name: "echo"}, {Name: "add"}})
	_ = r.RegisterTools("makefile", []tool.Descriptor{{Name: "build"}})

	dummyTools := r.ToolsFor("dummy")
	if len(dummyTools) != 2 {
		t.Fatalf("ToolsFor(dummy) len = %d, want 2", len(dummyTools))
	}
	if !r.Contains("makefile.build") {
		t.Fatalf("expected makefile.build to be present")
	}
}

func TestCallbackPanicDoesNotAffectOutcome(t *testing.T) {
	r := New(nil)
	r.SetCallbacks(func(plugin string, tools []tool.Descriptor) {
		panic("boom")
	}, nil)

	err := r.RegisterTools("dummy", []tool.Descriptor{{Name: "echo"}})
	if err != nil {
		t.Fatalf("RegisterTools() error = %v, want nil despite callback panic", err)
	}
	if !r.Contains("dummy.echo") {
		t.Fatalf("expected registration to have succeeded despite callback panic")
	}
}
