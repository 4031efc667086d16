package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	// EnvConfigFile names an optional YAML file read before the environment.
	EnvConfigFile = "SCORECARD_CONFIG"
)

// ProviderConfig holds credentials for one completion API.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// Config is everything a parse run needs. It is built once in main and passed
// down; nothing below main reads the environment.
type Config struct {
	Provider         string        `yaml:"provider" env:"SCORECARD_PROVIDER"`
	FallbackProvider string        `yaml:"fallback_provider" env:"SCORECARD_FALLBACK_PROVIDER"`
	Model            string        `yaml:"model" env:"SCORECARD_MODEL"`
	FallbackModel    string        `yaml:"fallback_model" env:"SCORECARD_FALLBACK_MODEL"`
	MaxTokens        int64         `yaml:"max_tokens" env:"SCORECARD_MAX_TOKENS"`
	JPEGQuality      int           `yaml:"jpeg_quality" env:"SCORECARD_JPEG_QUALITY"`
	Timeout          time.Duration `yaml:"timeout" env:"SCORECARD_TIMEOUT"`
	LogLevel         string        `yaml:"log_level" env:"SCORECARD_LOG_LEVEL"`
	MetricsFile      string        `yaml:"metrics_file" env:"SCORECARD_METRICS_FILE"`
	Addr             string        `yaml:"addr" env:"SCORECARD_ADDR"`

	Anthropic ProviderConfig `yaml:"anthropic" envPrefix:"ANTHROPIC_"`
	OpenAI    ProviderConfig `yaml:"openai" envPrefix:"OPENAI_"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderAnthropic,
		MaxTokens:   2500,
		JPEGQuality: 80,
		LogLevel:    "warn",
		Addr:        ":8080",
	}
}

// Load builds a Config from defaults, then the YAML file named by
// SCORECARD_CONFIG, then environment variables. A .env file in the working
// directory is loaded into the environment first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if !knownProvider(c.Provider) {
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderAnthropic, ProviderOpenAI)
	}
	if c.FallbackProvider != "" && !knownProvider(c.FallbackProvider) {
		return fmt.Errorf("unknown fallback provider %q", c.FallbackProvider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Credentials returns the API settings for the named provider.
func (c *Config) Credentials(provider string) ProviderConfig {
	if provider == ProviderOpenAI {
		return c.OpenAI
	}
	return c.Anthropic
}

func knownProvider(p string) bool {
	return p == ProviderAnthropic || p == ProviderOpenAI
}
