// Package config handles AIER configuration.
//
// Values come from, in increasing precedence: built-in defaults, a JSON or
// YAML config file, and AIER_* environment variables (AIER_SERVER_PORT,
// AIER_PROVIDER_NAME, ...).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aier/aier/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AIER"

// Config holds all configuration
type Config struct {
	// Paths
	DataDir    string `mapstructure:"data_dir" json:"data_dir" yaml:"data_dir"`
	RosterFile string `mapstructure:"roster_file" json:"roster_file,omitempty" yaml:"roster_file,omitempty"`

	Server   ServerConfig   `mapstructure:"server" json:"server" yaml:"server"`
	Provider ProviderConfig `mapstructure:"provider" json:"provider" yaml:"provider"`
	Engine   EngineConfig   `mapstructure:"engine" json:"engine" yaml:"engine"`
	Context  ContextConfig  `mapstructure:"context" json:"context" yaml:"context"`
	Storage  StorageConfig  `mapstructure:"storage" json:"storage" yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `mapstructure:"port" json:"port" yaml:"port"`
	Host string `mapstructure:"host" json:"host" yaml:"host"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProviderConfig selects the generation provider
type ProviderConfig struct {
	Name      string        `mapstructure:"name" json:"name" yaml:"name"` // gemini, claude, azure, ollama
	Model     string        `mapstructure:"model" json:"model,omitempty" yaml:"model,omitempty"`
	APIKey    string        `mapstructure:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL   string        `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	Fallbacks []string      `mapstructure:"fallbacks" json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// EngineConfig tunes the autonomous loop
type EngineConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval" json:"tick_interval" yaml:"tick_interval"`
	TickJitter    time.Duration `mapstructure:"tick_jitter" json:"tick_jitter" yaml:"tick_jitter"`
	IgniteDelay   time.Duration `mapstructure:"ignite_delay" json:"ignite_delay" yaml:"ignite_delay"`
	CooldownHold  time.Duration `mapstructure:"cooldown_hold" json:"cooldown_hold" yaml:"cooldown_hold"`
	ErrorHold     time.Duration `mapstructure:"error_hold" json:"error_hold" yaml:"error_hold"`
	SpawnEvery    int           `mapstructure:"spawn_every" json:"spawn_every" yaml:"spawn_every"`
	SpawnChance   float64       `mapstructure:"spawn_chance" json:"spawn_chance" yaml:"spawn_chance"`
	RetryAttempts int           `mapstructure:"retry_attempts" json:"retry_attempts" yaml:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" json:"retry_backoff" yaml:"retry_backoff"`
}

// ContextConfig controls real-world context injection
type ContextConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Live    bool          `mapstructure:"live" json:"live" yaml:"live"` // false: synthetic topics only
	TTL     time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend"` // sqlite, postgres, file, memory
	Path    string `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
	DSN     string `mapstructure:"dsn" json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// LoggingConfig for the process logger
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" json:"json" yaml:"json"`
}

// Default returns default configuration
func Default() *Config {
	cfg, _ := decode(newViper())
	return cfg
}

// Load loads config from path, falling back to defaults when the file does
// not exist. An empty path means <data_dir>/config.json. Environment
// overrides apply in every case.
func Load(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		path = filepath.Join(v.GetString("data_dir"), "config.json")
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Storage.Path == "" && cfg.Storage.Backend != storage.BackendPostgres && cfg.Storage.Backend != storage.BackendMemory {
		cfg.Storage.Path = storage.DefaultPath(cfg.Storage.Backend, cfg.DataDir)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("data_dir", filepath.Join(home, ".aier"))
	v.SetDefault("roster_file", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("provider.name", "gemini")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", 60*time.Second)
	v.SetDefault("provider.fallbacks", []string{})

	v.SetDefault("engine.tick_interval", 10*time.Second)
	v.SetDefault("engine.tick_jitter", 8*time.Second)
	v.SetDefault("engine.ignite_delay", 1500*time.Millisecond)
	v.SetDefault("engine.cooldown_hold", 15*time.Second)
	v.SetDefault("engine.error_hold", 5*time.Second)
	v.SetDefault("engine.spawn_every", 30)
	v.SetDefault("engine.spawn_chance", 0.1)
	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.retry_backoff", 2*time.Second)

	v.SetDefault("context.enabled", true)
	v.SetDefault("context.live", true)
	v.SetDefault("context.ttl", 5*time.Minute)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when backend is %q", c.Storage.Backend)
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when backend is 'postgres'")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be sqlite, postgres, file or memory, got %q", c.Storage.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive")
	}
	if c.Engine.SpawnEvery <= 0 {
		return fmt.Errorf("engine.spawn_every must be positive")
	}
	if c.Engine.SpawnChance < 0 || c.Engine.SpawnChance > 1 {
		return fmt.Errorf("engine.spawn_chance must be within [0, 1]")
	}
	return nil
}

// Save saves config to path as JSON, or YAML when path ends in .yaml/.yml.
// The provider API key is never written.
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	safeCfg := *c
	safeCfg.Provider.APIKey = ""

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(safeCfg)
	default:
		data, err = json.MarshalIndent(safeCfg, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
