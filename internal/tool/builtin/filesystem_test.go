package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
)

func newFilesystemTool(t *testing.T) (*FilesystemTool, string) {
	t.Helper()
	root := t.TempDir()
	tool, err := NewFilesystemTool(config.ToolsConfig{FilesystemRoot: root})
	require.NoError(t, err)
	require.NoError(t, tool.Connect(context.Background(), nil))
	return tool, root
}

func invoke(t *testing.T, tool capability.Tool, cap string, params map[string]any) *capability.Invocation {
	t.Helper()
	res, err := tool.Invoke(context.Background(), cap, params, capability.InvocationContext{UserID: "alice"})
	require.NoError(t, err)
	return res
}

func TestWriteThenReadFile(t *testing.T) {
	tool, root := newFilesystemTool(t)

	res := invoke(t, tool, "write_file", map[string]any{
		"path":    "notes/todo.txt",
		"content": "buy milk",
	})
	require.True(t, res.Success, res.Error)

	data, err := os.ReadFile(filepath.Join(root, "notes", "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "buy milk", string(data))

	read := invoke(t, tool, "read_file", map[string]any{"path": "notes/todo.txt"})
	require.True(t, read.Success)
	assert.Equal(t, "buy milk", read.Data)
}

func TestListDirectory(t *testing.T) {
	tool, root := newFilesystemTool(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	res := invoke(t, tool, "list_directory", map[string]any{})
	require.True(t, res.Success)
	assert.Equal(t, []string{"a.txt", "sub/"}, res.Data)
}

func TestDeleteFile(t *testing.T) {
	tool, root := newFilesystemTool(t)
	target := filepath.Join(root, "old.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	res := invoke(t, tool, "delete_file", map[string]any{"path": "old.txt"})
	require.True(t, res.Success)
	assert.NoFileExists(t, target)
}

func TestDeleteRefusesDirectory(t *testing.T) {
	tool, root := newFilesystemTool(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "keep"), 0o755))

	res := invoke(t, tool, "delete_file", map[string]any{"path": "keep"})
	assert.False(t, res.Success)
	assert.Equal(t, "delete_failed", res.ErrorCode)
}

func TestPathEscapeRejected(t *testing.T) {
	tool, _ := newFilesystemTool(t)

	for _, path := range []string{"../outside.txt", "a/../../outside.txt", "/etc/passwd"} {
		res := invoke(t, tool, "read_file", map[string]any{"path": path})
		assert.False(t, res.Success, "path %q must be rejected", path)
		assert.Equal(t, "path_outside_root", res.ErrorCode)
	}
}

func TestManifestForcesConfirmationOnDelete(t *testing.T) {
	tool, _ := newFilesystemTool(t)

	spec, ok := tool.Manifest().Capability("delete_file")
	require.True(t, ok)
	assert.True(t, spec.RequiresConfirmation)

	err := tool.ValidateParameters("write_file", map[string]any{"path": "x"})
	assert.ErrorContains(t, err, "content")
}
