// Package runtime builds the steward component graph for the CLI
// commands, using the coordinator for dependency-ordered lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stewardhq/steward/internal/assembler"
	"github.com/stewardhq/steward/internal/audit"
	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/coordinator"
	"github.com/stewardhq/steward/internal/dispatcher"
	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/gateway"
	"github.com/stewardhq/steward/internal/generator"
	"github.com/stewardhq/steward/internal/history"
	"github.com/stewardhq/steward/internal/knowledge"
	"github.com/stewardhq/steward/internal/monitor"
	"github.com/stewardhq/steward/internal/narrator"
	"github.com/stewardhq/steward/internal/relevance"
	"github.com/stewardhq/steward/internal/tool/builtin"
	"github.com/stewardhq/steward/internal/vault"
)

// Components is the fully wired runtime. Stop shuts everything down in
// reverse initialization order.
type Components struct {
	Cfg           *config.Config
	Vault         *vault.Vault
	Registry      *capability.Registry
	Router        *gateway.Router
	Knowledge     *knowledge.Store
	Audit         *audit.Recorder
	History       *history.Store
	Dispatcher    *dispatcher.Dispatcher
	Engine        *relevance.Engine
	Monitor       *monitor.Monitor
	Announcements chan relevance.ScoredEvent

	coord *coordinator.Coordinator
}

// funcModule adapts init/stop closures to the coordinator's Module.
type funcModule struct {
	init func(ctx context.Context) error
	stop func(ctx context.Context) error
}

func (m *funcModule) Initialize(ctx context.Context) error {
	if m.init == nil {
		return nil
	}
	return m.init(ctx)
}

func (m *funcModule) Shutdown(ctx context.Context) error {
	if m.stop == nil {
		return nil
	}
	return m.stop(ctx)
}

// Build constructs and initializes every component. Each module's
// constructor runs inside its coordinator Initialize, so dependency
// ordering is enforced by the coordinator, not by code layout.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{
		Cfg:           cfg,
		History:       history.NewStore(cfg.Assembler.HistoryTurns * 2),
		Announcements: make(chan relevance.ScoredEvent, 64),
	}
	coord := coordinator.New()
	c.coord = coord

	coord.Register("vault", coordinator.TypeStore, &funcModule{
		init: func(context.Context) error {
			v, err := vault.Open(cfg.Vault)
			if err != nil {
				return err
			}
			c.Vault = v
			return nil
		},
	}, nil)

	coord.Register("audit", coordinator.TypeStore, &funcModule{
		init: func(context.Context) error {
			rec, err := audit.NewRecorder(cfg.Audit)
			if err != nil {
				return err
			}
			c.Audit = rec
			return nil
		},
	}, nil)

	coord.Register("gateway", coordinator.TypeGateway, &funcModule{
		init: func(context.Context) error {
			router, err := gateway.NewRouter(cfg.Models)
			if err != nil {
				return err
			}
			c.Router = router
			return nil
		},
	}, nil)

	coord.Register("tools", coordinator.TypeTool, &funcModule{
		init: func(context.Context) error {
			registry, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			c.Registry = registry
			return nil
		},
		stop: func(ctx context.Context) error {
			for _, t := range c.Registry.List() {
				if t.Connected() {
					if err := t.Disconnect(ctx); err != nil {
						slog.Warn("Tool disconnect failed", "tool", t.ToolID(), "error", err)
					}
				}
			}
			return nil
		},
	}, []string{"vault"})

	coord.Register("knowledge", coordinator.TypeStore, &funcModule{
		init: func(context.Context) error {
			store, err := knowledge.NewStore(cfg.Knowledge, c.Router)
			if err != nil {
				return err
			}
			c.Knowledge = store
			return nil
		},
	}, []string{"gateway"})

	coord.Register("relevance", coordinator.TypeCore, &funcModule{
		init: func(context.Context) error {
			engine, err := relevance.NewEngine(cfg.Relevance, c.Router)
			if err != nil {
				return err
			}
			c.Engine = engine
			return nil
		},
	}, []string{"gateway"})

	coord.Register("monitor", coordinator.TypeMonitor, &funcModule{
		init: func(context.Context) error {
			c.Monitor = monitor.New(cfg.Monitor, c.emitEvent)
			return nil
		},
		stop: func(context.Context) error {
			if c.Monitor != nil {
				c.Monitor.Stop()
			}
			return nil
		},
	}, []string{"relevance"})

	coord.Register("pipeline", coordinator.TypeCore, &funcModule{
		init: func(context.Context) error {
			asm := assembler.New(cfg.Assembler, c.Registry, c.History, c.Knowledge, c.Vault)

			gen, err := generator.New(cfg.Models, c.Router)
			if err != nil {
				return err
			}
			exec, err := executor.New(cfg.Executor, c.Registry, c.Vault, c.Vault, c.Audit)
			if err != nil {
				return err
			}
			c.Dispatcher = dispatcher.New(
				asm,
				gen,
				capability.NewValidator(c.Registry),
				exec,
				narrator.New(c.Router),
				c.History,
			)
			return nil
		},
	}, []string{"gateway", "tools", "vault", "knowledge", "audit"})

	if err := coord.InitializeAll(ctx); err != nil {
		coord.ShutdownAll(ctx)
		return nil, fmt.Errorf("runtime initialization failed: %w", err)
	}
	return c, nil
}

// Stop tears the runtime down in reverse init order.
func (c *Components) Stop(ctx context.Context) {
	c.coord.ShutdownAll(ctx)
	close(c.Announcements)
}

// Health reports the lifecycle state of every module.
func (c *Components) Health() map[string]coordinator.HealthState {
	return c.coord.Health()
}

// emitEvent scores a monitor event and queues it for announcement when
// the engine says the user should hear about it.
func (c *Components) emitEvent(event relevance.Event) {
	scored := c.Engine.Score(context.Background(), event)
	if !scored.ShouldAnnounce {
		return
	}
	select {
	case c.Announcements <- scored:
	default:
		slog.Warn("Announcement queue full, dropping event",
			"source", event.Source,
			"type", event.Type,
		)
	}
}

func buildRegistry(cfg *config.Config) (*capability.Registry, error) {
	registry := capability.NewRegistry()

	fs, err := builtin.NewFilesystemTool(cfg.Tools)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(fs); err != nil {
		return nil, err
	}
	if err := registry.Register(builtin.NewSystemTool(cfg.Tools)); err != nil {
		return nil, err
	}

	// Manifests on disk describe external tools. Without a registered
	// implementation they only get surfaced, not executed.
	manifests, err := capability.LoadManifestDir(cfg.Tools.ManifestDir)
	if err != nil {
		return nil, err
	}
	for _, m := range manifests {
		if _, ok := registry.Get(m.ToolID); !ok {
			slog.Warn("Manifest has no registered implementation, skipping",
				"tool", m.ToolID, "manifest_dir", cfg.Tools.ManifestDir)
		}
	}
	return registry, nil
}
