package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/opencuff/opencuff/plugin"
	"github.com/opencuff/opencuff/tool"
)

func init() {
	plugin.Register("opencuff.plugins.builtin.makefile", newMakefile)
}

// Makefile discovers Makefile targets and exposes them as tools:
// list_targets and run_target. Only the "simple" extraction strategy
// is supported: fast regex-based scanning of target lines. A
// make-database strategy would run `make -pn`, which executes
// $(shell ...) during parsing and is unsafe against untrusted
// Makefiles, so anything but "simple" is rejected at initialization.
type Makefile struct {
	config map[string]any

	path         string
	includeGlobs []string
	excludeGlobs []string
	cacheTTL     time.Duration

	mu          sync.Mutex
	initialized bool
	cachedAt    time.Time
	cached      []string
}

var targetLineRE = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9_./-]*)\s*:(?:[^=]|$)`)

func newMakefile(config map[string]any) (plugin.Plugin, error) {
	m := &Makefile{config: config}
	if err := m.readConfig(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Makefile) readConfig() error {
	extractor, _ := m.config["extractor"].(string)
	if extractor == "" {
		extractor = "simple"
	}
	if extractor != "simple" {
		return fmt.Errorf("extractor %q is not supported; only \"simple\" is implemented (make_database/auto run make -pn, which executes $(shell ...) during parsing)", extractor)
	}

	path, _ := m.config["makefile_path"].(string)
	if path == "" {
		path = "./Makefile"
	}
	m.path = path

	m.includeGlobs = splitPatternList(m.config["targets"])
	m.excludeGlobs = splitPatternList(m.config["exclude_targets"])

	ttl := 0.0
	if v, ok := asFloat(m.config["cache_ttl"]); ok {
		ttl = v
	}
	m.cacheTTL = time.Duration(ttl * float64(time.Second))
	return nil
}

func splitPatternList(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m *Makefile) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	m.cached = nil
	return nil
}

func (m *Makefile) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	return nil
}

func (m *Makefile) HealthCheck(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *Makefile) OnConfigReload(ctx context.Context, config map[string]any) error {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	if err := m.readConfig(); err != nil {
		return err
	}
	return m.Initialize(ctx)
}

type listTargetsParams struct{}

type runTargetParams struct {
	Target string `json:"target" jsonschema:"description=Target name to run,required"`
}

func (m *Makefile) GetTools() []tool.Descriptor {
	return []tool.Descriptor{
		{
			Name:        "list_targets",
			Description: "List the Makefile targets discovered by the plugin",
			Parameters:  tool.SchemaFor(&listTargetsParams{}),
			Returns:     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		{
			Name:        "run_target",
			Description: "Run a discovered Makefile target",
			Parameters:  tool.SchemaFor(&runTargetParams{}),
			Returns:     map[string]any{"type": "string"},
		},
	}
}

func (m *Makefile) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	if !m.HealthCheck(ctx) {
		return tool.Err("plugin not initialized"), nil
	}
	switch name {
	case "list_targets":
		targets, err := m.targets()
		if err != nil {
			return tool.Err(err.Error()), nil
		}
		return tool.Ok(targets), nil
	case "run_target":
		return m.runTarget(ctx, args)
	default:
		return tool.Err(fmt.Sprintf("unknown tool: %s", name)), nil
	}
}

func (m *Makefile) targets() ([]string, error) {
	m.mu.Lock()
	if m.cacheTTL > 0 && m.cached != nil && time.Since(m.cachedAt) < m.cacheTTL {
		cached := m.cached
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	all, err := extractTargetsSimple(m.path)
	if err != nil {
		return nil, err
	}

	filtered := filterTargets(all, m.includeGlobs, m.excludeGlobs)

	m.mu.Lock()
	m.cached = filtered
	m.cachedAt = time.Now()
	m.mu.Unlock()

	return filtered, nil
}

// extractTargetsSimple scans Makefile lines for "target:" prefixes,
// skipping pattern rules, variable assignments, and dot-prefixed
// internal targets.
func extractTargetsSimple(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading makefile %q: %w", path, err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var targets []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		match := targetLineRE.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := match[1]
		if strings.Contains(name, "%") || strings.HasPrefix(name, ".") {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		targets = append(targets, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning makefile %q: %w", path, err)
	}
	return targets, nil
}

func filterTargets(all, include, exclude []string) []string {
	out := make([]string, 0, len(all))
	for _, t := range all {
		if len(include) > 0 && !matchesAny(t, include) {
			continue
		}
		if matchesAny(t, exclude) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (m *Makefile) runTarget(ctx context.Context, args map[string]any) (tool.Result, error) {
	target, _ := args["target"].(string)
	if target == "" {
		return tool.Err("target is required"), nil
	}

	targets, err := m.targets()
	if err != nil {
		return tool.Err(err.Error()), nil
	}
	found := false
	for _, t := range targets {
		if t == target {
			found = true
			break
		}
	}
	if !found {
		return tool.Err(fmt.Sprintf("target %q is not a discovered target", target)), nil
	}

	cmd := exec.CommandContext(ctx, "make", "-f", m.path, target)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return tool.Err(fmt.Sprintf("make %s failed: %v\n%s", target, err, output)), nil
	}
	return tool.Ok(string(output)), nil
}
