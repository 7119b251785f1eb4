package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/shlex"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/plan"
)

// SystemTool runs allowlisted shell commands and reports process health.
type SystemTool struct {
	allow     map[string]struct{}
	connected bool
}

func NewSystemTool(cfg config.ToolsConfig) *SystemTool {
	allow := make(map[string]struct{}, len(cfg.CommandAllow))
	for _, cmd := range cfg.CommandAllow {
		allow[strings.TrimSpace(cmd)] = struct{}{}
	}
	return &SystemTool{allow: allow}
}

func (t *SystemTool) ToolID() string { return "system" }

func (t *SystemTool) Manifest() capability.Manifest {
	return capability.Manifest{
		ToolID:      "system",
		Name:        "System",
		Version:     "1.0.0",
		Category:    capability.CategorySystem,
		Description: "Run allowlisted commands and inspect resource usage.",
		AuthMethod:  capability.AuthNone,
		Capabilities: []capability.CapabilitySpec{
			{
				Name:                 "run_command",
				Description:          "Run a command from the configured allowlist.",
				RiskLevel:            plan.RiskHigh,
				RequiresConfirmation: true,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"command": map[string]any{"type": "string", "description": "Full command line to run"},
					},
					"required": []any{"command"},
				},
			},
			{
				Name:        "resource_status",
				Description: "Report process memory and goroutine counts.",
				RiskLevel:   plan.RiskSafe,
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
	}
}

func (t *SystemTool) Connected() bool { return t.connected }

func (t *SystemTool) Connect(context.Context, map[string]string) error {
	t.connected = true
	return nil
}

func (t *SystemTool) Disconnect(context.Context) error {
	t.connected = false
	return nil
}

func (t *SystemTool) ValidateParameters(cap string, params map[string]any) error {
	spec, ok := t.Manifest().Capability(cap)
	if !ok {
		return capability.ErrCapabilityNotFound
	}
	return capability.ValidateInput(spec.Parameters, params)
}

func (t *SystemTool) Invoke(ctx context.Context, cap string, params map[string]any, _ capability.InvocationContext) (*capability.Invocation, error) {
	switch cap {
	case "run_command":
		return t.runCommand(ctx, params)
	case "resource_status":
		return t.resourceStatus()
	default:
		return nil, capability.ErrCapabilityNotFound
	}
}

func (t *SystemTool) runCommand(ctx context.Context, params map[string]any) (*capability.Invocation, error) {
	line := stringParam(params, "command")

	// Shell-style parsing without a shell: no globbing, no redirection,
	// no chaining past the first token.
	args, err := shlex.Split(line)
	if err != nil {
		return failure("parse_failed", fmt.Errorf("parse command: %w", err)), nil
	}
	if len(args) == 0 {
		return failure("parse_failed", fmt.Errorf("command is empty")), nil
	}
	if _, ok := t.allow[args[0]]; !ok {
		return failure("command_not_allowed", fmt.Errorf("command %q is not in the allowlist", args[0])), nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}
	if runErr != nil {
		return &capability.Invocation{
			Success:   false,
			Data:      result,
			Error:     runErr.Error(),
			ErrorCode: "command_failed",
		}, nil
	}
	return &capability.Invocation{Success: true, Data: result}, nil
}

func (t *SystemTool) resourceStatus() (*capability.Invocation, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	return &capability.Invocation{Success: true, Data: map[string]any{
		"memory_mb":  float64(stats.Alloc) / (1 << 20),
		"goroutines": runtime.NumGoroutine(),
		"num_gc":     stats.NumGC,
	}}, nil
}
