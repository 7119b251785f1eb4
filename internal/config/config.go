package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Models    ModelsConfig    `koanf:"models"`
	Vault     VaultConfig     `koanf:"vault"`
	Executor  ExecutorConfig  `koanf:"executor"`
	Assembler AssemblerConfig `koanf:"assembler"`
	Relevance RelevanceConfig `koanf:"relevance"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Audit     AuditConfig     `koanf:"audit"`
	Monitor   MonitorConfig   `koanf:"monitor"`
	Tools     ToolsConfig     `koanf:"tools"`
	Daemon    DaemonConfig    `koanf:"daemon"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
	DataDir  string `koanf:"data_dir"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	Embedding           string          `koanf:"embedding"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	GenerationTimeout   string          `koanf:"generation_timeout"`
	MaxTokens           int             `koanf:"max_tokens"`
	Temperature         float32         `koanf:"temperature"`
	RequestsPerMinute   int             `koanf:"requests_per_minute"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type VaultConfig struct {
	Path           string `koanf:"path"`
	Key            string `koanf:"key"`
	KeyringService string `koanf:"keyring_service"`
	LockTimeout    string `koanf:"lock_timeout"`
}

type ExecutorConfig struct {
	CallTimeout string `koanf:"call_timeout"`
	PlanTimeout string `koanf:"plan_timeout"`
	DefaultUser string `koanf:"default_user"`
}

type AssemblerConfig struct {
	Persona       string `koanf:"persona"`
	HistoryTurns  int    `koanf:"history_turns"`
	KnowledgeTopK int    `koanf:"knowledge_top_k"`
}

type RelevanceConfig struct {
	Window              string   `koanf:"window"`
	DedupWindow         string   `koanf:"dedup_window"`
	AnnouncementCeiling int      `koanf:"announcement_ceiling"`
	VIPSenders          []string `koanf:"vip_senders"`
	VIPDomains          []string `koanf:"vip_domains"`
}

type KnowledgeConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
}

type AuditConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Path           string   `koanf:"path"`
	RedactPatterns []string `koanf:"redact_patterns"`
}

type MonitorConfig struct {
	Enabled          bool    `koanf:"enabled"`
	Schedule         string  `koanf:"schedule"`
	MemoryAlertMB    float64 `koanf:"memory_alert_mb"`
	GoroutineCeiling int     `koanf:"goroutine_ceiling"`
}

type ToolsConfig struct {
	ManifestDir    string   `koanf:"manifest_dir"`
	FilesystemRoot string   `koanf:"filesystem_root"`
	CommandAllow   []string `koanf:"command_allow"`
}

type DaemonConfig struct {
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

const (
	DefaultServerLogLevel            = "info"
	DefaultModelDefault              = "gpt-4o-mini"
	DefaultModelFallback             = "claude-3-7-sonnet-latest"
	DefaultModelEmbedding            = "text-embedding-3-small"
	DefaultModelMaxFallbackAttempts  = 2
	DefaultModelGenerationTimeout    = "30s"
	DefaultModelMaxTokens            = 1500
	DefaultModelTemperature          = 0.1
	DefaultModelRequestsPerMinute    = 60
	DefaultVaultKeyringService       = "steward"
	DefaultVaultLockTimeout          = "5s"
	DefaultExecutorCallTimeout       = "30s"
	DefaultExecutorPlanTimeout       = "2m"
	DefaultExecutorUser              = "default"
	DefaultAssemblerHistoryTurns     = 5
	DefaultAssemblerKnowledgeTopK    = 3
	DefaultRelevanceWindow           = "5m"
	DefaultRelevanceDedupWindow      = "60s"
	DefaultRelevanceCeiling          = 10
	DefaultKnowledgeCollection       = "steward-knowledge"
	DefaultAuditEnabled              = true
	DefaultMonitorSchedule           = "@every 1m"
	DefaultMonitorMemoryAlertMB      = 1024
	DefaultMonitorGoroutineCeiling   = 5000
	DefaultDaemonShutdownTimeout     = "30s"
	DefaultAssemblerPersona          = "You are Steward, a careful personal assistant. You act only through the tools you are given, explain what you do, and ask before anything risky."
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".steward")

	defaults := map[string]interface{}{
		"server.log_level":             DefaultServerLogLevel,
		"server.data_dir":              dataDir,
		"models.default":               DefaultModelDefault,
		"models.fallback":              DefaultModelFallback,
		"models.embedding":             DefaultModelEmbedding,
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.generation_timeout":    DefaultModelGenerationTimeout,
		"models.max_tokens":            DefaultModelMaxTokens,
		"models.temperature":           DefaultModelTemperature,
		"models.requests_per_minute":   DefaultModelRequestsPerMinute,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "openai"},
			{Name: DefaultModelFallback, Provider: "anthropic"},
		},
		"vault.path":                    filepath.Join(dataDir, "vault.enc"),
		"vault.keyring_service":         DefaultVaultKeyringService,
		"vault.lock_timeout":            DefaultVaultLockTimeout,
		"executor.call_timeout":         DefaultExecutorCallTimeout,
		"executor.plan_timeout":         DefaultExecutorPlanTimeout,
		"executor.default_user":         DefaultExecutorUser,
		"assembler.persona":             DefaultAssemblerPersona,
		"assembler.history_turns":       DefaultAssemblerHistoryTurns,
		"assembler.knowledge_top_k":     DefaultAssemblerKnowledgeTopK,
		"relevance.window":              DefaultRelevanceWindow,
		"relevance.dedup_window":        DefaultRelevanceDedupWindow,
		"relevance.announcement_ceiling": DefaultRelevanceCeiling,
		"knowledge.path":                filepath.Join(dataDir, "knowledge"),
		"knowledge.collection":          DefaultKnowledgeCollection,
		"audit.enabled":                 DefaultAuditEnabled,
		"audit.path":                    filepath.Join(dataDir, "audit.log"),
		"audit.redact_patterns":         []string{`(?i)"(password|token|secret|api_key)"\s*:\s*"[^"]*"`},
		"monitor.enabled":               false,
		"monitor.schedule":              DefaultMonitorSchedule,
		"monitor.memory_alert_mb":       DefaultMonitorMemoryAlertMB,
		"monitor.goroutine_ceiling":     DefaultMonitorGoroutineCeiling,
		"tools.manifest_dir":            filepath.Join(dataDir, "manifests"),
		"tools.filesystem_root":         home,
		"tools.command_allow":           []string{"ls", "cat", "echo", "uptime", "df"},
		"daemon.shutdown_timeout":       DefaultDaemonShutdownTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else if home != "" {
		globalPath := filepath.Join(dataDir, "config.yaml")
		if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
			slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
		}
	}

	k.Load(env.Provider("STEWARD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STEWARD_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	// Inject standard env vars for providers missing a key.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "gemini" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("STEWARD_VAULT_KEY"); key != "" && cfg.Vault.Key == "" {
		cfg.Vault.Key = key
	}

	return &cfg, nil
}
