package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/errs"

	_ "github.com/opencuff/opencuff/plugin/builtin"
)

func writeSettings(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
}

const emptySettings = `
version: "1"
plugin_settings:
  config_poll_interval: 0.05
  live_reload: true
  health_check_interval: 0
plugins: {}
`

const dummySettings = `
version: "1"
plugin_settings:
  config_poll_interval: 0.05
  live_reload: true
  health_check_interval: 0
plugins:
  dummy:
    type: in_source
    enabled: true
    module: opencuff.plugins.builtin.dummy
    config:
      prefix: "Old: "
`

const dummySettingsNewPrefix = `
version: "1"
plugin_settings:
  config_poll_interval: 0.05
  live_reload: true
  health_check_interval: 0
plugins:
  dummy:
    type: in_source
    enabled: true
    module: opencuff.plugins.builtin.dummy
    config:
      prefix: "New: "
`

// waitFor polls cond every 10ms until it returns true or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

// Hot add: starting from an empty settings file, writing settings with
// one enabled in-process plugin must, within one watcher cycle, make
// its tools callable.
func TestManagerHotAdd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	writeSettings(t, path, emptySettings)

	m := New(path)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(ctx)

	if m.Registry().Len() != 0 {
		t.Fatalf("expected empty registry at start")
	}

	writeSettings(t, path, dummySettings)

	waitFor(t, 2*time.Second, func() bool { return m.Registry().Contains("dummy.echo") })

	for _, fqn := range []string{"dummy.echo", "dummy.add", "dummy.slow"} {
		if !m.Registry().Contains(fqn) {
			t.Fatalf("expected %s registered after hot add", fqn)
		}
	}

	result, err := m.CallTool(ctx, "dummy.echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Data != "Old: hi" {
		t.Fatalf("unexpected echo result: %+v", result)
	}
}

// Hot remove: rewriting settings back to empty must drop the plugin's
// tools and subsequent calls must fail tool_not_found.
func TestManagerHotRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	writeSettings(t, path, dummySettings)

	m := New(path)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool { return m.Registry().Contains("dummy.echo") })

	writeSettings(t, path, emptySettings)

	waitFor(t, 2*time.Second, func() bool { return m.Registry().Len() == 0 })

	_, err := m.CallTool(ctx, "dummy.echo", map[string]any{"message": "hi"})
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.ToolNotFound {
		t.Fatalf("expected tool_not_found, got %v", err)
	}
}

// Reload under load: an in-flight call must complete with the
// pre-reload adapter/config; the next call observes the new one.
func TestManagerReloadUnderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	writeSettings(t, path, dummySettings)

	m := New(path)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool { return m.Registry().Contains("dummy.slow") })

	type callResult struct {
		result any
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		r, err := m.CallTool(ctx, "dummy.slow", map[string]any{"seconds": 0.1})
		done <- callResult{r, err}
	}()

	time.Sleep(20 * time.Millisecond)
	writeSettings(t, path, dummySettingsNewPrefix)

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("in-flight call failed: %v", res.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("in-flight call never completed")
	}

	waitFor(t, 2*time.Second, func() bool {
		r, err := m.CallTool(ctx, "dummy.echo", map[string]any{"message": "hi"})
		return err == nil && r.Data == "New: hi"
	})
}

// A config change with nothing different must issue zero lifecycle ops:
// the plugin's adapter identity survives untouched.
func TestManagerConfigChangeNoDiffIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	writeSettings(t, path, dummySettings)

	m := New(path)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool { return m.Registry().Contains("dummy.echo") })

	before := m.lifecycleFor("dummy")

	// Rewrite with byte-identical content forces no fsnotify/poll
	// change; instead exercise onConfigChange directly with an
	// equal settings document to assert the diff issues no ops.
	m.onConfigChange(m.settings)

	after := m.lifecycleFor("dummy")
	if before != after {
		t.Fatalf("expected no-op config change to leave the same lifecycle instance")
	}
}

func TestManagerStopIsIdempotentAndQuiescent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	writeSettings(t, path, dummySettings)

	m := New(path)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return m.Registry().Contains("dummy.echo") })

	m.Stop(ctx)
	if m.Registry().Len() != 0 {
		t.Fatalf("expected registry empty after stop")
	}
	m.Stop(ctx) // second Stop is a no-op
}

func TestManagerLoadPluginUnknownModuleLeavesRegistryEmpty(t *testing.T) {
	m := New("")
	pc := config.PluginConfig{
		Type:    config.TypeInSource,
		Enabled: true,
		Module:  "opencuff.plugins.builtin.does-not-exist",
	}
	err := m.LoadPlugin(context.Background(), "broken", pc)
	if err == nil {
		t.Fatalf("expected load failure for unregistered module")
	}
	if m.Registry().Len() != 0 {
		t.Fatalf("expected nothing registered on load failure")
	}
}
