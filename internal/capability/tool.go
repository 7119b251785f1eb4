package capability

import (
	"context"
	"errors"

	"github.com/stewardhq/steward/internal/plan"
)

var (
	ErrToolNotFound       = errors.New("tool not found")
	ErrCapabilityNotFound = errors.New("capability not found")
)

// AuthMethod describes how a tool authenticates against its backend.
type AuthMethod string

const (
	AuthNone     AuthMethod = "none"
	AuthBasic    AuthMethod = "basic"
	AuthAPIKey   AuthMethod = "api_key"
	AuthOAuth2   AuthMethod = "oauth2"
	AuthToken    AuthMethod = "token"
	AuthKeychain AuthMethod = "keychain"
)

// Category groups tools for the capability catalog.
type Category string

const (
	CategoryCommunication Category = "communication"
	CategoryCalendar      Category = "calendar"
	CategoryFilesystem    Category = "filesystem"
	CategorySystem        Category = "system"
	CategorySecurity      Category = "security"
	CategoryProductivity  Category = "productivity"
	CategoryWeb           Category = "web"
)

// InvocationContext carries per-call metadata across the tool boundary.
type InvocationContext struct {
	UserID      string
	ExecutionID string
	Source      string
}

// Invocation is the result of one capability call.
type Invocation struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Tool is a pluggable capability provider. Implementations must be safe for
// concurrent invocation.
type Tool interface {
	ToolID() string
	Manifest() Manifest
	Connected() bool
	Connect(ctx context.Context, credentials map[string]string) error
	Disconnect(ctx context.Context) error
	Invoke(ctx context.Context, capability string, params map[string]any, ic InvocationContext) (*Invocation, error)
	ValidateParameters(capability string, params map[string]any) error
}

// CapabilitySpec describes one named operation a tool exposes.
type CapabilitySpec struct {
	Name                 string         `yaml:"name" json:"name"`
	Description          string         `yaml:"description" json:"description"`
	Parameters           map[string]any `yaml:"parameters" json:"parameters"`
	Returns              map[string]any `yaml:"returns" json:"returns,omitempty"`
	RiskLevel            plan.RiskLevel `yaml:"risk_level" json:"risk_level"`
	RequiresConfirmation bool           `yaml:"requires_confirmation" json:"requires_confirmation"`
}

// Manifest is the declarative description of a tool.
type Manifest struct {
	ToolID          string           `yaml:"tool_id" json:"tool_id"`
	Name            string           `yaml:"name" json:"name"`
	Version         string           `yaml:"version" json:"version"`
	Category        Category         `yaml:"category" json:"category"`
	Description     string           `yaml:"description" json:"description"`
	Capabilities    []CapabilitySpec `yaml:"capabilities" json:"capabilities"`
	AuthMethod      AuthMethod       `yaml:"auth_method" json:"auth_method"`
	RequiresNetwork bool             `yaml:"requires_network" json:"requires_network"`
}

// Capability looks up a capability spec by name.
func (m Manifest) Capability(name string) (CapabilitySpec, bool) {
	for _, c := range m.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return CapabilitySpec{}, false
}
