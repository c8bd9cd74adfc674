// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mcoot/accountsvc/internal/api"
	"github.com/mcoot/accountsvc/internal/security/password"
	"github.com/mcoot/accountsvc/internal/storage/postgres"
	redisstorage "github.com/mcoot/accountsvc/internal/storage/redis"
)

// Config is the complete server configuration
type Config struct {
	Server api.ServerConfig

	LogLevel string `env:"ACCOUNTSVC_LOG_LEVEL" envDefault:"info"`

	// StorageType selects the account store: memory, redis, postgres or sqlite
	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	Redis       redisstorage.Config
	Postgres    postgres.Config
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/accounts.db"`

	Password password.Config

	// StatsSchedule is the cron spec for refreshing account gauges
	StatsSchedule string `env:"STATS_SCHEDULE" envDefault:"@every 30s"`
}

// Load reads dotenv files, when present, and then parses the environment.
// Variables already set in the environment take precedence over dotenv values.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
