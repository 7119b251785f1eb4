package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/config"
)

func newSystemTool(t *testing.T) *SystemTool {
	t.Helper()
	tool := NewSystemTool(config.ToolsConfig{CommandAllow: []string{"echo", "true", "false"}})
	require.NoError(t, tool.Connect(context.Background(), nil))
	return tool
}

func TestRunAllowlistedCommand(t *testing.T) {
	tool := newSystemTool(t)

	res := invoke(t, tool, "run_command", map[string]any{"command": `echo "hello world"`})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	assert.Equal(t, "hello world\n", data["stdout"])
	assert.Equal(t, 0, data["exit_code"])
}

func TestRunCommandNotOnAllowlist(t *testing.T) {
	tool := newSystemTool(t)

	res := invoke(t, tool, "run_command", map[string]any{"command": "rm -rf /"})
	assert.False(t, res.Success)
	assert.Equal(t, "command_not_allowed", res.ErrorCode)
}

func TestRunCommandReportsNonZeroExit(t *testing.T) {
	tool := newSystemTool(t)

	res := invoke(t, tool, "run_command", map[string]any{"command": "false"})
	assert.False(t, res.Success)
	assert.Equal(t, "command_failed", res.ErrorCode)
	assert.Equal(t, 1, res.Data.(map[string]any)["exit_code"])
}

func TestRunCommandRejectsUnparseableLine(t *testing.T) {
	tool := newSystemTool(t)

	res := invoke(t, tool, "run_command", map[string]any{"command": `echo "unterminated`})
	assert.False(t, res.Success)
	assert.Equal(t, "parse_failed", res.ErrorCode)
}

func TestResourceStatus(t *testing.T) {
	tool := newSystemTool(t)

	res := invoke(t, tool, "resource_status", map[string]any{})
	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	assert.Greater(t, data["memory_mb"].(float64), 0.0)
	assert.Greater(t, data["goroutines"].(int), 0)
}
