package types

// Config represents the overall application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Providers  ProvidersConfig  `yaml:"providers" json:"providers"`
	Conversion ConversionConfig `yaml:"conversion" json:"conversion"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Jobs       JobsConfig       `yaml:"jobs" json:"jobs"`
	Messaging  MessagingConfig  `yaml:"messaging" json:"messaging"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
	MaxUploadMB  int    `yaml:"max_upload_mb" json:"max_upload_mb"`
}

// StorageConfig defines storage adapter settings
type StorageConfig struct {
	Adapter string           `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Local   LocalStorageOpts `yaml:"local" json:"local"`
	S3      S3StorageOpts    `yaml:"s3" json:"s3"`
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible adapter (AWS, R2, MinIO, B2)
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// ProvidersConfig holds all provider configurations
type ProvidersConfig struct {
	Default string              `yaml:"default" json:"default"` // Synthesizer used when none is named
	TTS     []TTSProviderConfig `yaml:"tts" json:"tts"`
}

// TTSProviderConfig configures a speech synthesizer
type TTSProviderConfig struct {
	Name       string            `yaml:"name" json:"name"`
	Type       string            `yaml:"type" json:"type"` // "mock" or "openai"
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Endpoint   string            `yaml:"endpoint" json:"endpoint"`
	APIKey     string            `yaml:"api_key" json:"api_key"`
	Model      string            `yaml:"model" json:"model"`
	Voice      string            `yaml:"voice" json:"voice"`
	SampleRate int               `yaml:"sample_rate" json:"sample_rate"`
	MaxRetries int               `yaml:"max_retries" json:"max_retries"`
	Timeout    int               `yaml:"timeout" json:"timeout"` // seconds
	Options    map[string]string `yaml:"options" json:"options"`
}

// ConversionConfig holds the knobs of the conversion pipeline
type ConversionConfig struct {
	MaxChars            int     `yaml:"max_chars" json:"max_chars"`
	MinChars            int     `yaml:"min_chars" json:"min_chars"`
	ParagraphPauseChars int     `yaml:"paragraph_pause_chars" json:"paragraph_pause_chars"`
	MinChapterLength    int     `yaml:"min_chapter_length" json:"min_chapter_length"`
	IgnoreTOC           bool    `yaml:"ignore_toc" json:"ignore_toc"` // Skip the outline and scan headings only
	ParagraphPause      float64 `yaml:"paragraph_pause" json:"paragraph_pause"` // seconds
	ChapterPause        float64 `yaml:"chapter_pause" json:"chapter_pause"`     // seconds
	Voice               string  `yaml:"voice" json:"voice"`
	Speed               float64 `yaml:"speed" json:"speed"`
	Language            string  `yaml:"language" json:"language"` // "", "en" or "es"
	DictionaryPath      string  `yaml:"dictionary_path" json:"dictionary_path"`
	BaseDictionaryPath  string  `yaml:"base_dictionary_path" json:"base_dictionary_path"`
}

// CheckpointConfig controls resumable conversions
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// JobsConfig controls the background conversion workers
type JobsConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent" json:"max_concurrent"`
	TempDir       string `yaml:"temp_dir" json:"temp_dir"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
	MaxRetries    int    `yaml:"max_retries" json:"max_retries"`
	RetryDelayMs  int    `yaml:"retry_delay_ms" json:"retry_delay_ms"`
}

// MessagingConfig configures progress fan-out
type MessagingConfig struct {
	NATS NATSConfig `yaml:"nats" json:"nats"`
}

// NATSConfig configures the NATS progress publisher
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	URL           string `yaml:"url" json:"url"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text or json
}
