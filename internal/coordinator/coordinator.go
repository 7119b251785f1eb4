// Package coordinator owns module lifecycle: dependency-ordered
// initialization and reverse-order shutdown.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ModuleType groups modules for health reporting.
type ModuleType string

const (
	TypeCore    ModuleType = "core"
	TypeStore   ModuleType = "store"
	TypeGateway ModuleType = "gateway"
	TypeTool    ModuleType = "tool"
	TypeMonitor ModuleType = "monitor"
)

// HealthState is a module's lifecycle position.
type HealthState string

const (
	HealthRegistered  HealthState = "registered"
	HealthInitialized HealthState = "initialized"
	HealthFailed      HealthState = "failed"
	HealthStopped     HealthState = "stopped"
)

// Module is anything the coordinator manages.
type Module interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ModuleDescriptor is the coordinator's record of one module.
type ModuleDescriptor struct {
	Name         string
	Type         ModuleType
	Instance     Module
	Dependencies []string
	Health       HealthState
}

// Coordinator initializes modules in dependency order and shuts them
// down in reverse.
type Coordinator struct {
	mu        sync.Mutex
	modules   map[string]*ModuleDescriptor
	initOrder []string
}

func New() *Coordinator {
	return &Coordinator{modules: make(map[string]*ModuleDescriptor)}
}

// Register records a module. Registering a name twice overwrites the
// earlier descriptor.
func (c *Coordinator) Register(name string, typ ModuleType, instance Module, deps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.modules[name]; exists {
		slog.Warn("Module already registered, overwriting", "module", name)
	}
	c.modules[name] = &ModuleDescriptor{
		Name:         name,
		Type:         typ,
		Instance:     instance,
		Dependencies: deps,
		Health:       HealthRegistered,
	}
	slog.Debug("Module registered", "module", name, "type", typ, "dependencies", deps)
}

// InitializeAll brings every module up, each strictly after its
// dependencies. It runs repeated passes over the remaining modules; a
// pass that makes no progress means a cycle or a missing dependency, and
// the error lists every module left unresolved.
func (c *Coordinator) InitializeAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := make(map[string]*ModuleDescriptor, len(c.modules))
	for name, desc := range c.modules {
		remaining[name] = desc
	}
	initialized := make(map[string]bool)

	for len(remaining) > 0 {
		progress := false

		// Deterministic pass order keeps failures reproducible.
		names := make([]string, 0, len(remaining))
		for name := range remaining {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			desc := remaining[name]
			if !depsReady(desc, initialized) {
				continue
			}

			if err := desc.Instance.Initialize(ctx); err != nil {
				desc.Health = HealthFailed
				return fmt.Errorf("initialize module %s: %w", name, err)
			}
			desc.Health = HealthInitialized
			initialized[name] = true
			c.initOrder = append(c.initOrder, name)
			delete(remaining, name)
			progress = true
			slog.Info("Module initialized", "module", name, "type", desc.Type)
		}

		if !progress {
			unresolved := make([]string, 0, len(remaining))
			for name, desc := range remaining {
				unresolved = append(unresolved, fmt.Sprintf("%s (waiting on %s)", name, strings.Join(desc.Dependencies, ", ")))
			}
			sort.Strings(unresolved)
			return fmt.Errorf("dependency cycle or missing dependency, unresolved modules: %s", strings.Join(unresolved, "; "))
		}
	}

	slog.Info("All modules initialized", "count", len(c.initOrder))
	return nil
}

// ShutdownAll tears modules down in reverse initialization order.
// Teardown errors are logged, not returned, so every module gets its
// shutdown call.
func (c *Coordinator) ShutdownAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.initOrder) - 1; i >= 0; i-- {
		name := c.initOrder[i]
		desc := c.modules[name]
		if desc == nil || desc.Health != HealthInitialized {
			continue
		}
		if err := desc.Instance.Shutdown(ctx); err != nil {
			slog.Error("Module shutdown failed", "module", name, "error", err)
		} else {
			slog.Info("Module stopped", "module", name)
		}
		desc.Health = HealthStopped
	}
	c.initOrder = nil
}

// Health returns the current state of every registered module.
func (c *Coordinator) Health() map[string]HealthState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]HealthState, len(c.modules))
	for name, desc := range c.modules {
		out[name] = desc.Health
	}
	return out
}

func depsReady(desc *ModuleDescriptor, initialized map[string]bool) bool {
	for _, dep := range desc.Dependencies {
		if !initialized[dep] {
			return false
		}
	}
	return true
}
