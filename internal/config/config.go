// Package config loads the retrochat configuration from YAML with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path to the database file. Defaults to ~/.retrochat/retrochat.db.
	Path string `yaml:"path"`
}

// LLMConfig selects and configures the analysis LLM provider.
type LLMConfig struct {
	// Provider is one of "google_ai", "openai", "cli".
	Provider string `yaml:"provider"`

	// Model overrides the provider default.
	Model string `yaml:"model"`

	// TimeoutSecs bounds each LLM request.
	TimeoutSecs int64 `yaml:"timeout_secs"`

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries"`

	// BaseURL points the openai provider at a compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// CLIBinary names the bridged binary for the cli provider.
	CLIBinary string `yaml:"cli_binary"`

	// CLIArgs are passed before the prompt for the cli provider.
	CLIArgs []string `yaml:"cli_args"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDBPath()},
		LLM: LLMConfig{
			Provider:    "google_ai",
			TimeoutSecs: 60,
			MaxRetries:  3,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Empty fields are filled with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RETROCHAT_CONFIG")
	}
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath()
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "google_ai"
	}
	if c.LLM.TimeoutSecs <= 0 {
		c.LLM.TimeoutSecs = 60
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".retrochat")
}

func defaultDBPath() string {
	return filepath.Join(configDir(), "retrochat.db")
}
