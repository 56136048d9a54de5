/*
Package config loads server configuration from the environment.

PURPOSE:
  One struct holds every setting. Values come from, in increasing
  priority: defaults in the struct tags, a .env file, the process
  environment, then command-line flags applied by cmd/server.

KEYS:
  KIDPOINTS_PORT             HTTP port (8080)
  KIDPOINTS_DB_DRIVER        sqlite | postgres | memory (sqlite)
  KIDPOINTS_DB_PATH          SQLite file (./data/kidpoints.db)
  DATABASE_URL               PostgreSQL DSN, required for postgres
  KIDPOINTS_REQUIRE_APPROVAL behaviors start Pending (false)
  KIDPOINTS_AUDIT_INTERVAL   balance cache audit period (1h, 0 disables)
  KIDPOINTS_ALLOWED_ORIGINS  comma-separated CORS origins (*)
  KIDPOINTS_DEFAULT_TIMEZONE timezone for families created without one (UTC)
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port            int           `env:"KIDPOINTS_PORT" envDefault:"8080"`
	DBDriver        string        `env:"KIDPOINTS_DB_DRIVER" envDefault:"sqlite"`
	DBPath          string        `env:"KIDPOINTS_DB_PATH" envDefault:"./data/kidpoints.db"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RequireApproval bool          `env:"KIDPOINTS_REQUIRE_APPROVAL" envDefault:"false"`
	AuditInterval   time.Duration `env:"KIDPOINTS_AUDIT_INTERVAL" envDefault:"1h"`
	AllowedOrigins  []string      `env:"KIDPOINTS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	DefaultTimezone string        `env:"KIDPOINTS_DEFAULT_TIMEZONE" envDefault:"UTC"`
}

// Load reads envFile (if it exists) into the environment, then parses the
// environment. Variables already set win over the file. A missing file is
// not an error; an empty envFile skips it.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks combinations the struct tags can't express.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("KIDPOINTS_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q (use sqlite, postgres or memory)", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AuditInterval < 0 {
		return errors.New("KIDPOINTS_AUDIT_INTERVAL cannot be negative")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid KIDPOINTS_DEFAULT_TIMEZONE: %w", err)
	}
	return nil
}
