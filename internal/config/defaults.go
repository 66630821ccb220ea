package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL         = "https://gamma-api.polymarket.com"
	DefaultAPITimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBaseDelay  = 1 * time.Second
	DefaultRetryMultiplier = 2.0
	DefaultRequestSpacing  = 200 * time.Millisecond
	DefaultPageSize        = 500
	DefaultDBDriver        = "sqlite"
	DefaultDBPath          = "polymarket_data.db"
	DefaultPGPort          = 5432
	DefaultPGSSLMode       = "prefer"
	DefaultPGMaxConns      = 4
	DefaultPGMinConns      = 1
	DefaultInterval        = 5 * time.Minute
	DefaultRetention       = 7 * 24 * time.Hour
	DefaultHealthPort      = 8080
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBaseDelay == 0 {
		c.API.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.API.RetryMultiplier == 0 {
		c.API.RetryMultiplier = DefaultRetryMultiplier
	}
	if c.API.RequestSpacing == 0 {
		c.API.RequestSpacing = DefaultRequestSpacing
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDBDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDBPath
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultPGPort
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = DefaultPGSSLMode
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = DefaultPGMaxConns
	}
	if c.Database.Postgres.MinConns == 0 {
		c.Database.Postgres.MinConns = DefaultPGMinConns
	}

	// Collector defaults
	if c.Collector.Interval == 0 {
		c.Collector.Interval = DefaultInterval
	}
	if c.Collector.Retention == 0 {
		c.Collector.Retention = DefaultRetention
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
