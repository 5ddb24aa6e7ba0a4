package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/unalkalkan/narrator/pkg/types"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
server:
  host: "localhost"
  port: 9090
  read_timeout: 10

storage:
  adapter: "local"
  local:
    base_path: "/tmp/test"

providers:
  default: kokoro
  tts:
    - name: kokoro
      type: openai
      enabled: true
      endpoint: "http://localhost:8880/v1"
      model: kokoro
      voice: bf_emma

conversion:
  max_chars: 300
  speed: 1.25
  language: es

checkpoint:
  enabled: false

jobs:
  max_concurrent: 3

logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Local.BasePath != "/tmp/test" {
		t.Errorf("Expected base_path '/tmp/test', got '%s'", cfg.Storage.Local.BasePath)
	}
	if len(cfg.Providers.TTS) != 1 || cfg.Providers.TTS[0].Name != "kokoro" {
		t.Fatalf("Expected only the kokoro provider, got %+v", cfg.Providers.TTS)
	}
	if cfg.Providers.Default != "kokoro" {
		t.Errorf("Expected default provider kokoro, got %q", cfg.Providers.Default)
	}
	if cfg.Conversion.MaxChars != 300 || cfg.Conversion.Speed != 1.25 || cfg.Conversion.Language != "es" {
		t.Errorf("Unexpected conversion config %+v", cfg.Conversion)
	}
	if cfg.Checkpoint.Enabled {
		t.Error("Expected checkpoints to be disabled")
	}
	if cfg.Jobs.MaxConcurrent != 3 {
		t.Errorf("Expected max_concurrent 3, got %d", cfg.Jobs.MaxConcurrent)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "minimal.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 7000\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	defaults := GetDefault()
	if cfg.Conversion != defaults.Conversion {
		t.Errorf("Expected default conversion config, got %+v", cfg.Conversion)
	}
	if !cfg.Checkpoint.Enabled {
		t.Error("Checkpoints should be enabled by default")
	}
	if len(cfg.Providers.TTS) != 1 || cfg.Providers.TTS[0].Type != "mock" {
		t.Errorf("Expected the default mock provider, got %+v", cfg.Providers.TTS)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(configPath, []byte("server: [port"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(configPath)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*types.Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *types.Config) {},
			wantErr: false,
		},
		{
			name: "invalid port",
			modify: func(c *types.Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid storage adapter",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "invalid"
			},
			wantErr: true,
		},
		{
			name: "missing local base path",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "local"
				c.Storage.Local.BasePath = ""
			},
			wantErr: true,
		},
		{
			name: "relative local base path",
			modify: func(c *types.Config) {
				c.Storage.Local.BasePath = "data"
			},
			wantErr: true,
		},
		{
			name: "missing s3 bucket",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "s3"
				c.Storage.S3.Bucket = ""
			},
			wantErr: true,
		},
		{
			name: "s3 with bucket and region",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "s3"
				c.Storage.S3.Bucket = "books"
				c.Storage.S3.Region = "us-east-1"
			},
			wantErr: false,
		},
		{
			name: "speed too slow",
			modify: func(c *types.Config) {
				c.Conversion.Speed = 0.25
			},
			wantErr: true,
		},
		{
			name: "min chars above max",
			modify: func(c *types.Config) {
				c.Conversion.MinChars = 500
			},
			wantErr: true,
		},
		{
			name: "negative pause",
			modify: func(c *types.Config) {
				c.Conversion.ChapterPause = -1
			},
			wantErr: true,
		},
		{
			name: "unsupported language",
			modify: func(c *types.Config) {
				c.Conversion.Language = "de"
			},
			wantErr: true,
		},
		{
			name: "base dictionary without dictionary",
			modify: func(c *types.Config) {
				c.Conversion.BaseDictionaryPath = "/etc/narrator/base.yaml"
			},
			wantErr: true,
		},
		{
			name: "unknown provider type",
			modify: func(c *types.Config) {
				c.Providers.TTS[0].Type = "espeak"
			},
			wantErr: true,
		},
		{
			name: "openai provider without endpoint",
			modify: func(c *types.Config) {
				c.Providers.TTS = append(c.Providers.TTS, types.TTSProviderConfig{Name: "remote", Type: "openai", Enabled: true})
			},
			wantErr: true,
		},
		{
			name: "duplicate provider",
			modify: func(c *types.Config) {
				c.Providers.TTS = append(c.Providers.TTS, c.Providers.TTS[0])
			},
			wantErr: true,
		},
		{
			name: "default provider disabled",
			modify: func(c *types.Config) {
				c.Providers.Default = "mock"
				c.Providers.TTS[0].Enabled = false
			},
			wantErr: true,
		},
		{
			name: "nats without url",
			modify: func(c *types.Config) {
				c.Messaging.NATS.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "bad log format",
			modify: func(c *types.Config) {
				c.Logging.Format = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefault()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, types.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &types.Config{
		Server:  types.ServerConfig{Port: 8080},
		Storage: types.StorageConfig{Adapter: "local", Local: types.LocalStorageOpts{BasePath: "/data"}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Conversion.MaxChars != 400 || cfg.Conversion.Speed != 1.0 || cfg.Conversion.MinChapterLength != 500 {
		t.Errorf("Conversion defaults not applied: %+v", cfg.Conversion)
	}
	if cfg.Jobs.MaxConcurrent != 2 || cfg.Jobs.TempDir == "" {
		t.Errorf("Jobs defaults not applied: %+v", cfg.Jobs)
	}
	if cfg.Messaging.NATS.SubjectPrefix != "narrator.progress" {
		t.Errorf("Expected default subject prefix, got %q", cfg.Messaging.NATS.SubjectPrefix)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging defaults not applied: %+v", cfg.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
server:
  host: "localhost"
  port: 8080
storage:
  adapter: "local"
  local:
    base_path: "/tmp/test"
providers:
  tts:
    - name: kokoro-local
      type: openai
      enabled: true
      endpoint: "http://localhost:8880/v1"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Set environment variables
	t.Setenv("NR_SERVER_PORT", "9999")
	t.Setenv("NR_STORAGE_LOCAL_BASE_PATH", "/tmp/override")
	t.Setenv("NR_CONVERSION_SPEED", "1.5")
	t.Setenv("NR_TTS_KOKORO_LOCAL_API_KEY", "secret")
	t.Setenv("NR_NATS_URL", "nats://localhost:4222")

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment overrides were applied
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env override, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Local.BasePath != "/tmp/override" {
		t.Errorf("Expected base_path '/tmp/override' from env override, got '%s'", cfg.Storage.Local.BasePath)
	}
	if cfg.Conversion.Speed != 1.5 {
		t.Errorf("Expected speed 1.5 from env override, got %v", cfg.Conversion.Speed)
	}
	if cfg.Providers.TTS[0].APIKey != "secret" {
		t.Errorf("Expected API key from env override, got %q", cfg.Providers.TTS[0].APIKey)
	}
	if !cfg.Messaging.NATS.Enabled || cfg.Messaging.NATS.URL != "nats://localhost:4222" {
		t.Errorf("Expected NATS enabled from env override, got %+v", cfg.Messaging.NATS)
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	t.Setenv("NR_SERVER_PORT", "eighty")
	if _, err := LoadOrDefault(""); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestGetDefault(t *testing.T) {
	cfg := GetDefault()
	if cfg == nil {
		t.Fatal("GetDefault() returned nil")
	}
	if cfg.Server.Port <= 0 {
		t.Error("Default config has invalid port")
	}
	if cfg.Storage.Adapter == "" {
		t.Error("Default config has empty storage adapter")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config does not validate: %v", err)
	}
}
