package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EngineConfig is the recognized engine option surface.
type EngineConfig struct {
	// Enabled is the master kill-switch; when false every request prompts.
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`

	// DefaultProfile is the profile id used when no profile is active.
	DefaultProfile string `yaml:"default_profile" envconfig:"DEFAULT_PROFILE"`

	AuditEnabled    bool `yaml:"audit_enabled" envconfig:"AUDIT_ENABLED"`
	MaxAuditEntries int  `yaml:"max_audit_entries" envconfig:"MAX_AUDIT_ENTRIES"`

	CacheEnabled bool `yaml:"cache_enabled" envconfig:"CACHE_ENABLED"`
	// CacheTTLMS is the default cached-decision lifetime in milliseconds.
	CacheTTLMS int `yaml:"cache_ttl_ms" envconfig:"CACHE_TTL_MS"`
}

// CacheTTL returns the configured TTL as a duration.
func (c EngineConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

// HTTPConfig contains HTTP API related settings.
type HTTPConfig struct {
	Enable bool   `yaml:"enable" envconfig:"ENABLE"`
	Addr   string `yaml:"addr" envconfig:"ADDR"`
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
}

// Config is the root configuration structure.
type Config struct {
	// LogLevel controls structured logging verbosity (DEBUG, INFO, WARN, ERROR).
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// DataDir is where the FS-backed store keeps its documents.
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`

	// WorkspaceRoot anchors the workspace-root condition. Empty disables it.
	WorkspaceRoot string `yaml:"workspace_root" envconfig:"WORKSPACE_ROOT"`

	Engine EngineConfig `yaml:"engine" envconfig:"ENGINE"`
	HTTP   HTTPConfig   `yaml:"http" envconfig:"HTTP"`
}

// Default returns the configuration used when nothing is supplied.
func Default() *Config {
	return &Config{
		LogLevel: "INFO",
		DataDir:  ".permgate",
		Engine: EngineConfig{
			Enabled:         true,
			AuditEnabled:    true,
			MaxAuditEntries: 1000,
			CacheEnabled:    true,
			CacheTTLMS:      300_000,
		},
		HTTP: HTTPConfig{
			Addr: ":8090",
		},
	}
}

// Load reads configuration from the specified path, or default locations if
// path is empty. Priority: Env Vars > Config File > Defaults.
func Load(path string) (*Config, error) {
	// Try loading .env files (ignore error if not present)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			defaultPath := filepath.Join(home, ".permgate", "config.yaml")
			if _, err := os.Stat(defaultPath); err == nil {
				path = defaultPath
			}
		}

		localPath := "permgate.yaml"
		if _, err := os.Stat(localPath); err == nil {
			path = localPath
		}
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Process Env Vars (PERMGATE_ prefix), overriding file values.
	if err := envconfig.Process("PERMGATE", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.Engine.MaxAuditEntries <= 0 {
		cfg.Engine.MaxAuditEntries = 1000
	}
	if cfg.Engine.CacheTTLMS <= 0 {
		cfg.Engine.CacheTTLMS = 300_000
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8090"
	}

	return cfg, nil
}
