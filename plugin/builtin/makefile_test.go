package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeMakefile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing makefile: %v", err)
	}
	return path
}

func TestMakefileListTargets(t *testing.T) {
	path := writeMakefile(t, "build:\n\techo building\n\ntest: build\n\techo testing\n\n.PHONY: build test\n")
	p, err := newMakefile(map[string]any{"makefile_path": path})
	if err != nil {
		t.Fatalf("newMakefile: %v", err)
	}
	m := p.(*Makefile)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	result, err := m.CallTool(context.Background(), "list_targets", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	targets := result.Data.([]string)
	want := map[string]bool{"build": true, "test": true}
	if len(targets) != len(want) {
		t.Fatalf("expected %d targets, got %v", len(want), targets)
	}
	for _, tgt := range targets {
		if !want[tgt] {
			t.Fatalf("unexpected target %q", tgt)
		}
	}
}

func TestMakefileExcludeFilter(t *testing.T) {
	path := writeMakefile(t, "build:\n\techo building\n\nbuild-internal:\n\techo internal\n")
	p, err := newMakefile(map[string]any{"makefile_path": path, "exclude_targets": "*-internal"})
	if err != nil {
		t.Fatalf("newMakefile: %v", err)
	}
	m := p.(*Makefile)
	m.Initialize(context.Background())

	result, _ := m.CallTool(context.Background(), "list_targets", nil)
	targets := result.Data.([]string)
	for _, tgt := range targets {
		if tgt == "build-internal" {
			t.Fatalf("expected build-internal to be excluded, got %v", targets)
		}
	}
}

func TestMakefileUnsupportedExtractorRejected(t *testing.T) {
	_, err := newMakefile(map[string]any{"extractor": "make_database"})
	if err == nil {
		t.Fatalf("expected make_database extractor to be rejected")
	}
}

func TestMakefileRunUnknownTargetRejected(t *testing.T) {
	path := writeMakefile(t, "build:\n\techo building\n")
	p, _ := newMakefile(map[string]any{"makefile_path": path})
	m := p.(*Makefile)
	m.Initialize(context.Background())

	result, err := m.CallTool(context.Background(), "run_target", map[string]any{"target": "nope"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for undiscovered target")
	}
}
