// Package config loads the imagen-mcp server configuration.
//
// Precedence, lowest to highest: defaults, YAML file, .env file, environment,
// command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	imagegen "github.com/mhpenta/imagen-mcp"
)

// Config is the process-wide server configuration. It is read-only after startup.
type Config struct {
	// APIKey is the Gemini API credential. Never logged or exposed as a resource.
	APIKey     string `yaml:"api_key" env:"API_KEY"`
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
	APIVersion string `yaml:"api_version" env:"API_VERSION"`

	DefaultModel       string `yaml:"default_model" env:"DEFAULT_MODEL"`
	BatchEnabled       bool   `yaml:"batch_enabled" env:"BATCH_ENABLED"`
	MaxBatchSize       int    `yaml:"max_batch_size" env:"MAX_BATCH_SIZE"`
	OutputDir          string `yaml:"output_dir" env:"OUTPUT_DIR"`
	RecordBatchHistory bool   `yaml:"record_batch_history" env:"RECORD_BATCH_HISTORY"`

	// RequestsPerMinute overrides the per-model request quota when positive.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	// MaxRateLimitWait makes a call fail fast when local quota would take longer
	// than this to free up. Zero waits for as long as the call's context allows.
	MaxRateLimitWait time.Duration `yaml:"max_rate_limit_wait" env:"MAX_RATE_LIMIT_WAIT"`
	HTTPTimeout      time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`

	Log     LogConfig     `yaml:"log" env:"LOG"`
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// json or console
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	settings := imagegen.DefaultSettings()
	return &Config{
		BaseURL:      "https://generativelanguage.googleapis.com",
		APIVersion:   "v1beta",
		DefaultModel: string(settings.DefaultModel),
		BatchEnabled: settings.BatchEnabled,
		MaxBatchSize: settings.MaxBatchSize,
		OutputDir:    settings.OutputDir,
		HTTPTimeout:  2 * time.Minute,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, errors.New("api key is required (set IMAGEN_API_KEY, GEMINI_API_KEY or --api-key)"))
	}
	if err := imagegen.ValidateModel(imagegen.Model(c.DefaultModel)); err != nil {
		errs = append(errs, err)
	}
	if err := imagegen.ValidateBatchSize(c.MaxBatchSize); err != nil {
		errs = append(errs, err)
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("requests_per_minute must not be negative: %d", c.RequestsPerMinute))
	}
	if c.MaxRateLimitWait < 0 {
		errs = append(errs, fmt.Errorf("max_rate_limit_wait must not be negative: %v", c.MaxRateLimitWait))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must not be negative: %v", c.HTTPTimeout))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("invalid log format: %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Settings converts the configuration into the orchestrator's settings.
func (c *Config) Settings() imagegen.Settings {
	return imagegen.Settings{
		DefaultModel:       imagegen.Model(c.DefaultModel),
		BatchEnabled:       c.BatchEnabled,
		MaxBatchSize:       c.MaxBatchSize,
		OutputDir:          c.OutputDir,
		RecordBatchHistory: c.RecordBatchHistory,
	}
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.APIKey != "" {
		out.APIKey = "***"
	}
	return out
}
