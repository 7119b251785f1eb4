package capability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds all loaded tools keyed by tool ID.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool after enforcing its manifest invariants.
func (r *Registry) Register(t Tool) error {
	m := t.Manifest()
	if err := NormalizeManifest(&m); err != nil {
		return fmt.Errorf("register tool: %w", err)
	}
	id := strings.TrimSpace(t.ToolID())
	if id == "" {
		return fmt.Errorf("register tool: empty tool id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[id] = t
	return nil
}

func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[strings.TrimSpace(id)]
	return t, ok
}

// List returns tools sorted by ID for deterministic catalog rendering.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Tool, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tools[id])
	}
	return out
}

// CatalogText renders the capability catalog for prompt assembly.
func (r *Registry) CatalogText() string {
	var sb strings.Builder
	for _, t := range r.List() {
		m := t.Manifest()
		sb.WriteString(fmt.Sprintf("### %s (%s)\n", m.ToolID, m.Category))
		for _, c := range m.Capabilities {
			confirm := ""
			if c.RequiresConfirmation {
				confirm = ", needs confirmation"
			}
			sb.WriteString(fmt.Sprintf("- %s (%s%s): %s\n", c.Name, c.RiskLevel, confirm, c.Description))
			if params := renderParams(c.Parameters); params != "" {
				sb.WriteString(fmt.Sprintf("  parameters: %s\n", params))
			}
		}
	}
	return sb.String()
}

func renderParams(schema map[string]any) string {
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return ""
	}
	required := requiredFields(schema)

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		typ := ""
		if p, ok := props[name].(map[string]any); ok {
			typ, _ = p["type"].(string)
		}
		part := name
		if typ != "" {
			part += " (" + typ + ")"
		}
		if _, req := required[name]; req {
			part += " [required]"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func requiredFields(schema map[string]any) map[string]struct{} {
	out := make(map[string]struct{})
	switch req := schema["required"].(type) {
	case []any:
		for _, f := range req {
			if name, ok := f.(string); ok {
				out[name] = struct{}{}
			}
		}
	case []string:
		for _, name := range req {
			out[name] = struct{}{}
		}
	}
	return out
}
