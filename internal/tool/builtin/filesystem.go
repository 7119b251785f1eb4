// Package builtin ships the tools steward provides out of the box.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/plan"
)

// FilesystemTool reads and writes files under a configured root. Paths
// outside the root are rejected before any filesystem access.
type FilesystemTool struct {
	root      string
	connected bool
}

func NewFilesystemTool(cfg config.ToolsConfig) (*FilesystemTool, error) {
	root, err := filepath.Abs(cfg.FilesystemRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve filesystem root: %w", err)
	}
	return &FilesystemTool{root: root}, nil
}

func (t *FilesystemTool) ToolID() string { return "filesystem" }

func (t *FilesystemTool) Manifest() capability.Manifest {
	return capability.Manifest{
		ToolID:      "filesystem",
		Name:        "Filesystem",
		Version:     "1.0.0",
		Category:    capability.CategoryFilesystem,
		Description: "Read, write, list, and delete files under the configured root directory.",
		AuthMethod:  capability.AuthNone,
		Capabilities: []capability.CapabilitySpec{
			{
				Name:        "read_file",
				Description: "Read a text file's contents.",
				RiskLevel:   plan.RiskSafe,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{"type": "string", "description": "File path relative to the root"},
					},
					"required": []any{"path"},
				},
			},
			{
				Name:        "write_file",
				Description: "Create or overwrite a text file.",
				RiskLevel:   plan.RiskMedium,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":    map[string]any{"type": "string", "description": "File path relative to the root"},
						"content": map[string]any{"type": "string", "description": "Full file contents"},
					},
					"required": []any{"path", "content"},
				},
			},
			{
				Name:        "list_directory",
				Description: "List the entries of a directory.",
				RiskLevel:   plan.RiskSafe,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{"type": "string", "description": "Directory path relative to the root"},
					},
				},
			},
			{
				Name:                 "delete_file",
				Description:          "Delete a file permanently.",
				RiskLevel:            plan.RiskHigh,
				RequiresConfirmation: true,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{"type": "string", "description": "File path relative to the root"},
					},
					"required": []any{"path"},
				},
			},
		},
	}
}

func (t *FilesystemTool) Connected() bool { return t.connected }

func (t *FilesystemTool) Connect(_ context.Context, _ map[string]string) error {
	if _, err := os.Stat(t.root); err != nil {
		return fmt.Errorf("filesystem root %s unavailable: %w", t.root, err)
	}
	t.connected = true
	return nil
}

func (t *FilesystemTool) Disconnect(context.Context) error {
	t.connected = false
	return nil
}

func (t *FilesystemTool) ValidateParameters(cap string, params map[string]any) error {
	spec, ok := t.Manifest().Capability(cap)
	if !ok {
		return capability.ErrCapabilityNotFound
	}
	return capability.ValidateInput(spec.Parameters, params)
}

func (t *FilesystemTool) Invoke(_ context.Context, cap string, params map[string]any, _ capability.InvocationContext) (*capability.Invocation, error) {
	switch cap {
	case "read_file":
		return t.readFile(params)
	case "write_file":
		return t.writeFile(params)
	case "list_directory":
		return t.listDirectory(params)
	case "delete_file":
		return t.deleteFile(params)
	default:
		return nil, capability.ErrCapabilityNotFound
	}
}

func (t *FilesystemTool) readFile(params map[string]any) (*capability.Invocation, error) {
	path, err := t.resolve(stringParam(params, "path"))
	if err != nil {
		return failure("path_outside_root", err), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failure("read_failed", err), nil
	}
	return &capability.Invocation{Success: true, Data: string(data)}, nil
}

func (t *FilesystemTool) writeFile(params map[string]any) (*capability.Invocation, error) {
	path, err := t.resolve(stringParam(params, "path"))
	if err != nil {
		return failure("path_outside_root", err), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failure("write_failed", err), nil
	}
	content := stringParam(params, "content")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return failure("write_failed", err), nil
	}
	return &capability.Invocation{Success: true, Data: map[string]any{
		"path":  path,
		"bytes": len(content),
	}}, nil
}

func (t *FilesystemTool) listDirectory(params map[string]any) (*capability.Invocation, error) {
	dir := stringParam(params, "path")
	if dir == "" {
		dir = "."
	}
	path, err := t.resolve(dir)
	if err != nil {
		return failure("path_outside_root", err), nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return failure("list_failed", err), nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &capability.Invocation{Success: true, Data: names}, nil
}

func (t *FilesystemTool) deleteFile(params map[string]any) (*capability.Invocation, error) {
	path, err := t.resolve(stringParam(params, "path"))
	if err != nil {
		return failure("path_outside_root", err), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return failure("delete_failed", err), nil
	}
	if info.IsDir() {
		return failure("delete_failed", fmt.Errorf("%s is a directory", path)), nil
	}
	if err := os.Remove(path); err != nil {
		return failure("delete_failed", err), nil
	}
	return &capability.Invocation{Success: true, Data: map[string]any{"deleted": path}}, nil
}

// resolve joins the path onto the root and rejects anything escaping it.
func (t *FilesystemTool) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is empty")
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(t.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(t.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the allowed root", path)
	}
	return candidate, nil
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func failure(code string, err error) *capability.Invocation {
	return &capability.Invocation{Success: false, Error: err.Error(), ErrorCode: code}
}
