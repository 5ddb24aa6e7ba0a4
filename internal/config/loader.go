package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file on top of the defaults.
// It also supports environment variable overrides with NR_ prefix.
func Load(configPath string) (*types.Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML over the defaults so omitted keys keep their default
	cfg := GetDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v: %w", err, types.ErrInvalidInput)
	}

	return finish(cfg)
}

// LoadOrDefault loads configPath, or the defaults when it is empty
func LoadOrDefault(configPath string) (*types.Config, error) {
	if configPath == "" {
		return finish(GetDefault())
	}
	return Load(configPath)
}

func finish(cfg *types.Config) (*types.Config, error) {
	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate fills unset values with defaults and checks the rest
func Validate(cfg *types.Config) error {
	// Validate server config
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return invalid("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout < 0 {
		return invalid("invalid server write_timeout: %d", cfg.Server.WriteTimeout)
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 200
	}

	// Validate storage adapter
	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return invalid("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return invalid("local storage base_path is required")
		}
		// Ensure base path is absolute
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return invalid("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Bucket == "" {
			return invalid("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return invalid("s3 region is required")
		}
	}

	if err := validateProviders(&cfg.Providers); err != nil {
		return err
	}
	if err := validateConversion(&cfg.Conversion); err != nil {
		return err
	}

	// Validate jobs config
	if cfg.Jobs.MaxConcurrent <= 0 {
		cfg.Jobs.MaxConcurrent = 2 // default
	}
	if cfg.Jobs.TempDir == "" {
		cfg.Jobs.TempDir = filepath.Join(os.TempDir(), "narrator")
	}
	if cfg.Jobs.RetentionDays < 0 {
		return invalid("invalid jobs retention_days: %d", cfg.Jobs.RetentionDays)
	}
	if cfg.Jobs.MaxRetries < 0 {
		cfg.Jobs.MaxRetries = 3 // default
	}
	if cfg.Jobs.RetryDelayMs <= 0 {
		cfg.Jobs.RetryDelayMs = 1000
	}

	// Validate messaging config
	if cfg.Messaging.NATS.Enabled && cfg.Messaging.NATS.URL == "" {
		return invalid("nats url is required when nats is enabled")
	}
	if cfg.Messaging.NATS.SubjectPrefix == "" {
		cfg.Messaging.NATS.SubjectPrefix = "narrator.progress"
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Level) {
	case "":
		cfg.Logging.Level = "info"
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("invalid log level: %s", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "":
		cfg.Logging.Format = "text"
	case "text", "json":
	default:
		return invalid("invalid log format: %s (must be 'text' or 'json')", cfg.Logging.Format)
	}

	return nil
}

func validateProviders(cfg *types.ProvidersConfig) error {
	enabled := make(map[string]bool)
	for i := range cfg.TTS {
		p := &cfg.TTS[i]
		if p.Name == "" {
			return invalid("tts provider %d has no name", i)
		}
		if _, dup := enabled[p.Name]; dup {
			return invalid("duplicate tts provider: %s", p.Name)
		}
		enabled[p.Name] = p.Enabled

		switch p.Type {
		case "":
			p.Type = "openai"
		case "mock", "openai":
		default:
			return invalid("invalid tts provider type: %s (must be 'mock' or 'openai')", p.Type)
		}
		if p.Enabled && p.Type == "openai" && p.Endpoint == "" {
			return invalid("tts provider %s: endpoint is required", p.Name)
		}
		if p.SampleRate < 0 {
			return invalid("tts provider %s: invalid sample_rate %d", p.Name, p.SampleRate)
		}
	}

	if cfg.Default != "" && !enabled[cfg.Default] {
		return invalid("default tts provider %s is not configured or not enabled", cfg.Default)
	}
	return nil
}

func validateConversion(cfg *types.ConversionConfig) error {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 400
	}
	if cfg.MinChars < 0 || cfg.MinChars >= cfg.MaxChars {
		return invalid("min_chars %d must be between 0 and max_chars %d", cfg.MinChars, cfg.MaxChars)
	}
	if cfg.ParagraphPauseChars < 0 {
		return invalid("invalid paragraph_pause_chars: %d", cfg.ParagraphPauseChars)
	}
	if cfg.MinChapterLength <= 0 {
		cfg.MinChapterLength = 500
	}
	if cfg.ParagraphPause < 0 || cfg.ChapterPause < 0 {
		return invalid("pauses must not be negative")
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}
	if cfg.Speed < 0.5 || cfg.Speed > 2.0 {
		return invalid("speed %.2f must be between 0.5 and 2.0", cfg.Speed)
	}
	switch cfg.Language {
	case "", "en", "es":
	default:
		return invalid("unsupported language: %s (must be 'en' or 'es')", cfg.Language)
	}
	if cfg.BaseDictionaryPath != "" && cfg.DictionaryPath == "" {
		return invalid("base_dictionary_path requires dictionary_path")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, types.ErrInvalidInput)...)
}

// applyEnvOverrides applies environment variable overrides
// Environment variables should be prefixed with NR_ (narrator)
func applyEnvOverrides(cfg *types.Config) error {
	// Server overrides
	if val := os.Getenv("NR_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if err := envInt("NR_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}

	// Storage overrides
	if val := os.Getenv("NR_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("NR_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("NR_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("NR_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("NR_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("NR_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("NR_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}

	// Conversion overrides
	if val := os.Getenv("NR_CONVERSION_VOICE"); val != "" {
		cfg.Conversion.Voice = val
	}
	if val := os.Getenv("NR_CONVERSION_SPEED"); val != "" {
		speed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return invalid("invalid NR_CONVERSION_SPEED %q", val)
		}
		cfg.Conversion.Speed = speed
	}
	if val := os.Getenv("NR_CONVERSION_LANGUAGE"); val != "" {
		cfg.Conversion.Language = val
	}

	// Jobs, messaging and logging overrides
	if err := envInt("NR_JOBS_MAX_CONCURRENT", &cfg.Jobs.MaxConcurrent); err != nil {
		return err
	}
	if val := os.Getenv("NR_JOBS_TEMP_DIR"); val != "" {
		cfg.Jobs.TempDir = val
	}
	if val := os.Getenv("NR_NATS_URL"); val != "" {
		cfg.Messaging.NATS.URL = val
		cfg.Messaging.NATS.Enabled = true
	}
	if val := os.Getenv("NR_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("NR_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Apply provider API key overrides
	applyProviderEnvOverrides(cfg)
	return nil
}

// applyProviderEnvOverrides applies provider-specific env vars
func applyProviderEnvOverrides(cfg *types.Config) {
	for i := range cfg.Providers.TTS {
		name := strings.ToUpper(strings.ReplaceAll(cfg.Providers.TTS[i].Name, "-", "_"))
		prefix := fmt.Sprintf("NR_TTS_%s_", name)
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			cfg.Providers.TTS[i].APIKey = val
		}
		if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
			cfg.Providers.TTS[i].Endpoint = val
		}
	}
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return invalid("invalid %s %q", key, val)
	}
	*dst = n
	return nil
}

// GetDefault returns a default configuration
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 0, // downloads and event streams run long
			MaxUploadMB:  200,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "/var/lib/narrator/storage",
			},
		},
		Providers: types.ProvidersConfig{
			TTS: []types.TTSProviderConfig{
				{Name: "mock", Type: "mock", Enabled: true, SampleRate: 24000},
			},
		},
		Conversion: types.ConversionConfig{
			MaxChars:            400,
			MinChars:            50,
			ParagraphPauseChars: 100,
			MinChapterLength:    500,
			ParagraphPause:      0.5,
			ChapterPause:        1.5,
			Voice:               "af_heart",
			Speed:               1.0,
		},
		Checkpoint: types.CheckpointConfig{
			Enabled: true,
		},
		Jobs: types.JobsConfig{
			MaxConcurrent: 2,
			TempDir:       filepath.Join(os.TempDir(), "narrator"),
			RetentionDays: 7,
			MaxRetries:    3,
			RetryDelayMs:  1000,
		},
		Messaging: types.MessagingConfig{
			NATS: types.NATSConfig{
				SubjectPrefix: "narrator.progress",
			},
		},
		Logging: types.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
