package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Default Config Tests
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "localhost")
	}

	if cfg.Provider.Name != "gemini" {
		t.Errorf("Provider.Name = %q, want gemini", cfg.Provider.Name)
	}

	// Engine cadence
	if cfg.Engine.TickInterval != 10*time.Second || cfg.Engine.TickJitter != 8*time.Second {
		t.Errorf("tick = %v + %v, want 10s + 8s", cfg.Engine.TickInterval, cfg.Engine.TickJitter)
	}
	if cfg.Engine.IgniteDelay != 1500*time.Millisecond {
		t.Errorf("IgniteDelay = %v, want 1.5s", cfg.Engine.IgniteDelay)
	}
	if cfg.Engine.CooldownHold != 15*time.Second || cfg.Engine.ErrorHold != 5*time.Second {
		t.Errorf("holds = %v/%v, want 15s/5s", cfg.Engine.CooldownHold, cfg.Engine.ErrorHold)
	}
	if cfg.Engine.SpawnEvery != 30 || cfg.Engine.SpawnChance != 0.1 {
		t.Errorf("spawn = every %d @ %v, want 30 @ 0.1", cfg.Engine.SpawnEvery, cfg.Engine.SpawnChance)
	}
	if cfg.Engine.RetryAttempts != 3 || cfg.Engine.RetryBackoff != 2*time.Second {
		t.Errorf("retry = %d @ %v, want 3 @ 2s", cfg.Engine.RetryAttempts, cfg.Engine.RetryBackoff)
	}

	if !cfg.Context.Enabled || cfg.Context.TTL != 5*time.Minute {
		t.Errorf("Context = %+v", cfg.Context)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != filepath.Join(cfg.DataDir, "aier.db") {
		t.Errorf("Storage.Path = %q, want under DataDir", cfg.Storage.Path)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should validate: %v", err)
	}
}

func TestDefault_DataDirContainsAier(t *testing.T) {
	cfg := Default()

	if !filepath.IsAbs(cfg.DataDir) {
		t.Error("DataDir should be an absolute path")
	}

	if filepath.Base(cfg.DataDir) != ".aier" {
		t.Errorf("DataDir should end with .aier, got %q", filepath.Base(cfg.DataDir))
	}
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 9000}
	if s.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q", s.Addr())
	}
}

// =============================================================================
// Load Config Tests
// =============================================================================

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/non/existent/path/config.json")

	if err != nil {
		t.Fatalf("Load() error = %v, want nil for non-existent file", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
}

func TestLoad_ValidJSONFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{
		"data_dir": "` + tmpDir + `",
		"server": {"port": 9090, "host": "0.0.0.0"},
		"provider": {"name": "ollama", "model": "llama3", "fallbacks": ["gemini"]},
		"engine": {"tick_interval": "3s", "spawn_chance": 0.5},
		"storage": {"backend": "file"},
		"logging": {"level": "debug", "json": true}
	}`
	if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Provider.Name != "ollama" || cfg.Provider.Model != "llama3" {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if len(cfg.Provider.Fallbacks) != 1 || cfg.Provider.Fallbacks[0] != "gemini" {
		t.Errorf("Fallbacks = %v", cfg.Provider.Fallbacks)
	}
	if cfg.Engine.TickInterval != 3*time.Second {
		t.Errorf("TickInterval = %v, want 3s", cfg.Engine.TickInterval)
	}
	if cfg.Engine.SpawnChance != 0.5 {
		t.Errorf("SpawnChance = %v, want 0.5", cfg.Engine.SpawnChance)
	}
	// Untouched engine keys keep their defaults.
	if cfg.Engine.TickJitter != 8*time.Second {
		t.Errorf("TickJitter = %v, want default 8s", cfg.Engine.TickJitter)
	}
	if cfg.Storage.Path != filepath.Join(tmpDir, "aier.json") {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aier.yaml")
	body := "server:\n  port: 7070\ncontext:\n  live: false\n"
	os.WriteFile(configPath, []byte(body), 0644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Context.Live {
		t.Error("Context.Live should be false")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	data, _ := json.Marshal(map[string]any{
		"server":   map[string]any{"port": 3000},
		"provider": map[string]any{"api_key": "file-key"},
	})
	os.WriteFile(configPath, data, 0644)

	t.Setenv("AIER_SERVER_PORT", "4000")
	t.Setenv("AIER_PROVIDER_API_KEY", "env-key")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000 (env override)", cfg.Server.Port)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("Provider.APIKey = %q, want env-key", cfg.Provider.APIKey)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(configPath, []byte("{ invalid json }"), 0644)

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should return error for invalid JSON")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown backend", `{"storage":{"backend":"etcd"}}`, "storage.backend"},
		{"postgres without dsn", `{"storage":{"backend":"postgres"}}`, "storage.dsn"},
		{"bad port", `{"server":{"port":70000}}`, "server.port"},
		{"bad spawn chance", `{"engine":{"spawn_chance":2}}`, "spawn_chance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.json")
			os.WriteFile(configPath, []byte(tt.body), 0644)

			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

// =============================================================================
// Save Config Tests
// =============================================================================

func TestSave_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.json")

	cfg := Default()
	cfg.DataDir = tmpDir
	cfg.Server.Port = 9999
	cfg.Engine.ErrorHold = 7 * time.Second

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", loaded.Server.Port)
	}
	if loaded.Engine.ErrorHold != 7*time.Second {
		t.Errorf("ErrorHold = %v, want 7s", loaded.Engine.ErrorHold)
	}
}

func TestSave_YAMLRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Context.TTL = 90 * time.Second

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Context.TTL != 90*time.Second {
		t.Errorf("Context.TTL = %v, want 90s", loaded.Context.TTL)
	}
}

func TestSave_DoesNotSaveAPIKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Provider.APIKey = "secret-api-key"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, _ := os.ReadFile(configPath)
	if strings.Contains(string(data), "secret-api-key") {
		t.Error("API key should not be written to disk")
	}

	if cfg.Provider.APIKey != "secret-api-key" {
		t.Error("Save() should not modify the original config")
	}
}

func TestSave_EmptyPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = t.TempDir()

	if err := cfg.Save(""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.DataDir, "config.json")); err != nil {
		t.Errorf("config.json not created under DataDir: %v", err)
	}
}
