package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mcoot/accountsvc/internal/config"
	"github.com/mcoot/accountsvc/internal/dependencies/clock"
	"github.com/mcoot/accountsvc/internal/dependencies/random"
	"github.com/mcoot/accountsvc/internal/metrics"
	"github.com/mcoot/accountsvc/internal/security/password"
	"github.com/mcoot/accountsvc/internal/security/token"
	"github.com/mcoot/accountsvc/internal/services/identity"
	"github.com/mcoot/accountsvc/internal/storage"
	"github.com/mcoot/accountsvc/internal/storage/memory"
	"github.com/mcoot/accountsvc/internal/storage/postgres"
	redisstorage "github.com/mcoot/accountsvc/internal/storage/redis"
	"github.com/mcoot/accountsvc/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Accounts

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Issuer token.Issuer
	Hasher password.Hasher

	// Observability
	Metrics *metrics.Metrics

	// Services
	IdentityService *identity.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend: memory, redis, postgres or sqlite
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds connection settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// PasswordConfig selects the hashing algorithm (optional)
	// If nil, defaults to password.DefaultConfig()
	PasswordConfig *password.Config
}

// ConfigFromEnv builds a factory Config from loaded environment configuration
func ConfigFromEnv(cfg config.Config, logger *slog.Logger) Config {
	return Config{
		Logger:         logger,
		StorageType:    cfg.StorageType,
		RedisConfig:    &cfg.Redis,
		PostgresConfig: &cfg.Postgres,
		SQLitePath:     cfg.SQLitePath,
		PasswordConfig: &cfg.Password,
	}
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	passwordCfg := password.DefaultConfig()
	if cfg.PasswordConfig != nil {
		passwordCfg = *cfg.PasswordConfig
	}
	hasher, err := password.New(passwordCfg)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(store, hasher, token.New(), clock.New(), random.New(), logger), nil
}

func openStorage(ctx context.Context, cfg Config) (storage.Accounts, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		return store, nil
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		store, err := postgres.Open(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		return store, nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be one of memory, redis, postgres, sqlite", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Accounts, hasher password.Hasher, issuer token.Issuer, clk clock.Clock, rnd random.Random, logger *slog.Logger) *App {
	m := metrics.New()
	identityService := identity.New(store, hasher, issuer, clk, rnd, identity.Config{
		Logger:   logger,
		Recorder: m,
	})

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Issuer:          issuer,
		Hasher:          hasher,
		Metrics:         m,
		IdentityService: identityService,
	}
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
