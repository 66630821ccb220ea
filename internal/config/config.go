// Package config holds the collector's configuration: YAML file loading with
// environment expansion, defaults, and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a collector instance.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Database  DatabaseConfig  `yaml:"database"`
	Collector CollectorConfig `yaml:"collector"`
	Health    HealthConfig    `yaml:"health"`
	Verbose   bool            `yaml:"verbose"`
}

// APIConfig holds Gamma API client settings.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	RetryMultiplier float64       `yaml:"retry_multiplier"`
	RequestSpacing  time.Duration `yaml:"request_spacing"`
	PageSize        int           `yaml:"page_size"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string   `yaml:"driver"` // "sqlite" (default) or "postgres"
	Path     string   `yaml:"path"`   // sqlite database file
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// CollectorConfig holds scheduling and retention settings.
type CollectorConfig struct {
	Interval  time.Duration `yaml:"interval"`  // Cycle interval, 1-60 minutes
	Retention time.Duration `yaml:"retention"` // History retention window
}

// HealthConfig holds the read-only health/stats HTTP server settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and expands ${VAR} environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
