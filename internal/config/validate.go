package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
// Validation failures are fatal at startup.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MaxRetries < 1 {
		return errors.New("api.max_retries must be >= 1")
	}
	if c.API.RetryMultiplier < 1 {
		return errors.New("api.retry_multiplier must be >= 1")
	}
	if c.API.PageSize < 1 {
		return errors.New("api.page_size must be >= 1")
	}

	if c.Collector.Interval < time.Minute || c.Collector.Interval > 60*time.Minute {
		return fmt.Errorf("collector.interval must be between 1m and 60m, got %s", c.Collector.Interval)
	}
	if c.Collector.Retention <= 0 {
		return errors.New("collector.retention must be > 0")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", c.Database.Driver)
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
