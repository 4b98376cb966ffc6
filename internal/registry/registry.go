// Package registry is the capability catalog: stable identifiers for the
// specialist modules a plan may activate and the tools a plan may approve.
// The planner selects by id; the assembler resolves ids back to descriptions.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// ToolCategory groups tools by the kind of work they do. Intent rules
// approve categories, not individual tools.
type ToolCategory string

const (
	CategoryCalculation ToolCategory = "calculation"
	CategoryDateTime    ToolCategory = "datetime"
	CategoryCodeNav     ToolCategory = "code_navigation"
	CategoryDiagnostics ToolCategory = "diagnostics"
	CategoryRefactoring ToolCategory = "refactoring"
	CategoryTesting     ToolCategory = "testing"
	CategoryDocs        ToolCategory = "documentation"
	CategorySearch      ToolCategory = "search"
)

// ModuleInfo describes one specialist capability unit.
type ModuleInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"` // lower runs earlier; core modules occupy the low range
	Core        bool     `json:"core"`
	Tags        []string `json:"tags,omitempty"`
}

// ToolInfo describes one invokable tool. Only the schema-side description
// lives here; execution belongs to the caller of the pipeline.
type ToolInfo struct {
	ID          string       `json:"id"`
	Category    ToolCategory `json:"category"`
	Description string       `json:"description"`
	Keywords    []string     `json:"keywords,omitempty"` // drive the degraded-mode fallback table
}

// Registry holds the catalog. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]ModuleInfo
	tools   map[string]ToolInfo
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]ModuleInfo),
		tools:   make(map[string]ToolInfo),
	}
}

// RegisterModule adds a module descriptor. Duplicate ids are an error.
func (r *Registry) RegisterModule(m ModuleInfo) error {
	if m.ID == "" {
		return fmt.Errorf("module id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.ID]; exists {
		return fmt.Errorf("module already registered: %s", m.ID)
	}
	r.modules[m.ID] = m
	return nil
}

// RegisterTool adds a tool descriptor. Duplicate ids are an error.
func (r *Registry) RegisterTool(t ToolInfo) error {
	if t.ID == "" {
		return fmt.Errorf("tool id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.ID]; exists {
		return fmt.Errorf("tool already registered: %s", t.ID)
	}
	r.tools[t.ID] = t
	return nil
}

// Module resolves a module id.
func (r *Registry) Module(id string) (ModuleInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// Tool resolves a tool id.
func (r *Registry) Tool(id string) (ToolInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// Modules returns all module descriptors ordered by priority, then id.
func (r *Registry) Modules() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModuleInfo, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tools returns all tool descriptors ordered by id.
func (r *Registry) Tools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CoreModuleIDs returns the always-on module ids in priority order.
func (r *Registry) CoreModuleIDs() []string {
	ids := make([]string, 0, 4)
	for _, m := range r.Modules() {
		if m.Core {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// ToolsInCategory returns tool ids belonging to any of the given categories,
// ordered by id.
func (r *Registry) ToolsInCategory(categories ...ToolCategory) []string {
	want := make(map[ToolCategory]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}

	ids := make([]string, 0, 8)
	for _, t := range r.Tools() {
		if want[t.Category] {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// ModulePriority reports the catalog priority for id; unknown ids sort last.
func (r *Registry) ModulePriority(id string) int {
	if m, ok := r.Module(id); ok {
		return m.Priority
	}
	return 1 << 30
}
