// Package config loads cookbook settings from an optional YAML file, a .env
// file and the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Checkpoint drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the root configuration.
type Config struct {
	// Env selects the deployment profile used by the configurable model
	// lessons (development, staging, production).
	Env        string                 `yaml:"env"`
	Timeout    time.Duration          `yaml:"timeout"`
	Providers  ProvidersConfig        `yaml:"providers"`
	Log        LogConfig              `yaml:"log"`
	Checkpoint CheckpointConfig       `yaml:"checkpoint"`
	Telemetry  TelemetryConfig        `yaml:"telemetry"`
	Pricing    map[string]PriceConfig `yaml:"pricing"`
	Media      MediaConfig            `yaml:"media"`
}

// ProvidersConfig holds per-vendor credentials and defaults.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
}

// ProviderConfig configures one model vendor.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	MaxRetries   int    `yaml:"max_retries"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CheckpointConfig selects the conversation store used by memory lessons.
type CheckpointConfig struct {
	Driver string        `yaml:"driver"`
	DSN    string        `yaml:"dsn"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

// TelemetryConfig configures OpenTelemetry export to rotated files.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ServiceName    string        `yaml:"service_name"`
	TraceFile      string        `yaml:"trace_file"`
	MetricFile     string        `yaml:"metric_file"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// PriceConfig is a model price in USD per one million tokens.
type PriceConfig struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// MediaConfig points the multimodal lessons at real media. Empty entries make
// those lessons describe the request instead of sending it.
type MediaConfig struct {
	ImageFile string `yaml:"image_file"`
	AudioFile string `yaml:"audio_file"`
	AudioURI  string `yaml:"audio_uri"`
	VideoURI  string `yaml:"video_uri"`
	PDFURI    string `yaml:"pdf_uri"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Env:     "development",
		Timeout: 2 * time.Minute,
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{DefaultModel: "gpt-4o-mini", MaxRetries: 2},
			Anthropic: ProviderConfig{DefaultModel: "claude-3-5-sonnet-20241022", MaxRetries: 2},
			Gemini:    ProviderConfig{DefaultModel: "gemini-2.0-flash"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Checkpoint: CheckpointConfig{Driver: DriverMemory, Prefix: "cookbook"},
		Telemetry: TelemetryConfig{
			ServiceName:    "agentcookbook",
			TraceFile:      filepath.Join("logs", "traces.log"),
			MetricFile:     filepath.Join("logs", "metrics.log"),
			MetricInterval: 10 * time.Second,
		},
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty and
// present), then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if key := getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}

	if url := getenv("OPENAI_BASE_URL"); url != "" {
		c.Providers.OpenAI.BaseURL = url
	}

	if key := getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Providers.Anthropic.APIKey = key
	}

	if key := getenv("GOOGLE_API_KEY"); key != "" {
		c.Providers.Gemini.APIKey = key
	} else if key := getenv("GEMINI_API_KEY"); key != "" {
		c.Providers.Gemini.APIKey = key
	}

	if env := getenv("APP_ENV"); env != "" {
		c.Env = env
	}

	if lvl := getenv("COOKBOOK_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}

	if drv := getenv("COOKBOOK_CHECKPOINT_DRIVER"); drv != "" {
		c.Checkpoint.Driver = drv
	}

	if dsn := getenv("COOKBOOK_CHECKPOINT_DSN"); dsn != "" {
		c.Checkpoint.DSN = dsn
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Checkpoint.Driver {
	case DriverMemory:
	case DriverSQLite, DriverRedis, DriverPostgres:
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint driver %q requires a dsn", c.Checkpoint.Driver)
		}
	default:
		return fmt.Errorf("unknown checkpoint driver %q", c.Checkpoint.Driver)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	for name, p := range c.Pricing {
		if p.Input < 0 || p.Output < 0 {
			return fmt.Errorf("negative price for model %q", name)
		}
	}

	return nil
}
