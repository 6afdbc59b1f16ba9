// Package db extracts a schema Model from a live PostgreSQL catalog.
// One extraction runs inside a single repeatable-read read-only
// transaction whose snapshot is shared with per-schema workers, so the
// resulting Model describes one consistent point in time.
package db

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ConnConfig holds the connection settings for a PostgreSQL database.
type ConnConfig struct {
	Host     string `env:"PGHOST" envDefault:"localhost"`
	Port     int    `env:"PGPORT" envDefault:"5432"`
	User     string `env:"PGUSER"`
	Database string `env:"PGDATABASE"`
}

// ConfigFromEnv reads the connection settings from the standard libpq
// environment variables.
func ConfigFromEnv() (ConnConfig, error) {
	var cfg ConnConfig
	if err := env.Parse(&cfg); err != nil {
		return ConnConfig{}, fmt.Errorf("failed to parse connection settings: %w", err)
	}
	return cfg, nil
}

// ConnString renders the settings as a libpq keyword/value string.
func (c ConnConfig) ConnString() string {
	s := fmt.Sprintf("host=%s port=%d", c.Host, c.Port)
	if c.User != "" {
		s += " user=" + c.User
	}
	if c.Database != "" {
		s += " dbname=" + c.Database
	}
	return s
}
