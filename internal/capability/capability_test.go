package capability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stewardhq/steward/internal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	manifest  Manifest
	connected bool
}

func (s *stubTool) ToolID() string     { return s.manifest.ToolID }
func (s *stubTool) Manifest() Manifest { return s.manifest }
func (s *stubTool) Connected() bool    { return s.connected }

func (s *stubTool) Connect(ctx context.Context, credentials map[string]string) error {
	s.connected = true
	return nil
}

func (s *stubTool) Disconnect(ctx context.Context) error {
	s.connected = false
	return nil
}

func (s *stubTool) Invoke(ctx context.Context, capability string, params map[string]any, ic InvocationContext) (*Invocation, error) {
	return &Invocation{Success: true}, nil
}

func (s *stubTool) ValidateParameters(capability string, params map[string]any) error {
	spec, ok := s.manifest.Capability(capability)
	if !ok {
		return ErrCapabilityNotFound
	}
	return ValidateInput(spec.Parameters, params)
}

func filesystemManifest() Manifest {
	return Manifest{
		ToolID:   "filesystem",
		Name:     "Filesystem",
		Version:  "1.0.0",
		Category: CategoryFilesystem,
		Capabilities: []CapabilitySpec{
			{
				Name:      "write_file",
				RiskLevel: plan.RiskMedium,
				Parameters: map[string]any{
					"properties": map[string]any{
						"path":    map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
					},
					"required": []any{"path", "content"},
				},
			},
			{Name: "delete_file", RiskLevel: plan.RiskHigh},
		},
		AuthMethod: AuthNone,
	}
}

func TestNormalizeManifest_ForcesConfirmationForGatedCapabilities(t *testing.T) {
	m := filesystemManifest()
	require.NoError(t, NormalizeManifest(&m))

	del, ok := m.Capability("delete_file")
	require.True(t, ok)
	assert.True(t, del.RequiresConfirmation, "high risk must be confirmation-gated at load time")

	write, ok := m.Capability("write_file")
	require.True(t, ok)
	assert.False(t, write.RequiresConfirmation)
}

func TestNormalizeManifest_RejectsBadManifests(t *testing.T) {
	m := Manifest{Capabilities: []CapabilitySpec{{Name: "x"}}}
	assert.Error(t, NormalizeManifest(&m), "missing tool_id")

	m = Manifest{ToolID: "t"}
	assert.Error(t, NormalizeManifest(&m), "no capabilities")

	m = Manifest{ToolID: "t", Capabilities: []CapabilitySpec{
		{Name: "a"}, {Name: "a"},
	}}
	assert.Error(t, NormalizeManifest(&m), "duplicate capability")

	m = Manifest{ToolID: "t", Capabilities: []CapabilitySpec{
		{Name: "a", RiskLevel: plan.RiskLevel("extreme")},
	}}
	assert.Error(t, NormalizeManifest(&m), "unknown risk level")
}

func TestLoadManifestFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.yaml")
	content := `
tool_id: imap_email
name: Email
version: 1.0.0
category: communication
auth_method: basic
requires_network: true
capabilities:
  - name: send_email
    description: Send an email
    risk_level: high
    parameters:
      properties:
        recipient: {type: string}
        subject: {type: string}
      required: [recipient, subject]
  - name: list_inbox
    description: List recent messages
    risk_level: safe
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadManifestFile(path)
	require.NoError(t, err)
	assert.Equal(t, "imap_email", m.ToolID)
	assert.True(t, m.RequiresNetwork)

	send, ok := m.Capability("send_email")
	require.True(t, ok)
	assert.Equal(t, plan.RiskHigh, send.RiskLevel)
	assert.True(t, send.RequiresConfirmation)

	manifests, err := LoadManifestDir(dir)
	require.NoError(t, err)
	assert.Len(t, manifests, 1)
}

func TestValidator_ReportsEveryViolation(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{manifest: filesystemManifest()}))

	p := &plan.ActionPlan{
		Intent:     plan.IntentMultiStep,
		Confidence: 0.9,
		ToolCalls: []plan.ToolCall{
			{ToolID: "nonexistent", Capability: "anything"},
			{ToolID: "filesystem", Capability: "format_disk"},
			{ToolID: "filesystem", Capability: "write_file", Parameters: map[string]any{"path": "/tmp/x"}},
			{ToolID: "nonexistent", Capability: "other"},
		},
	}

	result := NewValidator(registry).Validate(p)
	assert.False(t, result.Valid())
	assert.Len(t, result.Violations, 4, "all violations reported, not just the first")
	assert.Equal(t, []string{"nonexistent"}, result.MissingTools)
	assert.Contains(t, result.Violations[2].Reason, "content")
}

func TestValidator_ValidPlan(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{manifest: filesystemManifest()}))

	p := &plan.ActionPlan{
		Intent:     plan.IntentSystemAction,
		Confidence: 0.9,
		ToolCalls: []plan.ToolCall{
			{ToolID: "filesystem", Capability: "write_file", Parameters: map[string]any{
				"path": "/tmp/notes.txt", "content": "hello",
			}},
		},
	}

	result := NewValidator(registry).Validate(p)
	assert.True(t, result.Valid())
	assert.Empty(t, result.MissingTools)
}

func TestValidateInput_TypeChecks(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}

	assert.NoError(t, ValidateInput(schema, map[string]any{"count": float64(3)}))
	assert.Error(t, ValidateInput(schema, map[string]any{"count": "three"}))
	assert.Error(t, ValidateInput(schema, map[string]any{"tags": []any{"a", 1}}))
}

func TestRegistry_CatalogText(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{manifest: filesystemManifest()}))

	catalog := registry.CatalogText()
	assert.Contains(t, catalog, "### filesystem (filesystem)")
	assert.Contains(t, catalog, "write_file (medium)")
	assert.Contains(t, catalog, "delete_file (high, needs confirmation)")
	assert.Contains(t, catalog, "path (string) [required]")
}
