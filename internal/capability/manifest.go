package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stewardhq/steward/internal/plan"

	"gopkg.in/yaml.v3"
)

// NormalizeManifest applies load-time invariants: defaults, and forced
// confirmation for high/critical capabilities.
func NormalizeManifest(m *Manifest) error {
	m.ToolID = strings.TrimSpace(m.ToolID)
	if m.ToolID == "" {
		return fmt.Errorf("manifest missing tool_id")
	}
	if m.AuthMethod == "" {
		m.AuthMethod = AuthNone
	}
	if len(m.Capabilities) == 0 {
		return fmt.Errorf("manifest %s declares no capabilities", m.ToolID)
	}

	seen := make(map[string]struct{}, len(m.Capabilities))
	for i := range m.Capabilities {
		c := &m.Capabilities[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return fmt.Errorf("manifest %s has a capability without a name", m.ToolID)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("manifest %s declares capability %s twice", m.ToolID, c.Name)
		}
		seen[c.Name] = struct{}{}

		if c.RiskLevel == "" {
			c.RiskLevel = plan.RiskSafe
		}
		if !c.RiskLevel.Valid() {
			return fmt.Errorf("manifest %s capability %s has unknown risk level %q", m.ToolID, c.Name, c.RiskLevel)
		}
		if c.RiskLevel.Gated() {
			c.RequiresConfirmation = true
		}
	}
	return nil
}

// LoadManifestFile parses and normalizes a YAML manifest.
func LoadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := NormalizeManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestDir loads every *.yaml/*.yml manifest in dir. A missing dir is
// not an error; individual bad files are.
func LoadManifestDir(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		m, err := LoadManifestFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
