package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TODO_"

type Config struct {
	Database DatabaseConfig `toml:"database" envPrefix:"DB_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	Auth     AuthConfig     `toml:"auth" envPrefix:"AUTH_"`
	Cache    CacheConfig    `toml:"cache" envPrefix:"CACHE_"`
	Store    StoreConfig    `toml:"store" envPrefix:"STORE_"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, postgres, mysql.
	Driver string `toml:"driver" env:"DRIVER"`
	DSN    string `toml:"dsn" env:"DSN"`
	// LogLevel controls SQL logging: silent, error, warn, info.
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
}

type ServerConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
	// MaxSessions bounds the open add/edit form sessions; the oldest is closed first.
	MaxSessions int           `toml:"max_sessions" env:"MAX_SESSIONS"`
	SessionTTL  time.Duration `toml:"session_ttl" env:"SESSION_TTL"`
	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"` // text or json
	// File enables rotated file output when non-empty.
	File       string `toml:"file" env:"FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"max_age_days" env:"MAX_AGE_DAYS"`
}

type AuthConfig struct {
	Enabled  bool          `toml:"enabled" env:"ENABLED"`
	Secret   string        `toml:"secret" env:"SECRET"`
	Issuer   string        `toml:"issuer" env:"ISSUER"`
	Audience string        `toml:"audience" env:"AUDIENCE"`
	TTL      time.Duration `toml:"ttl" env:"TTL"`
}

type CacheConfig struct {
	Size int           `toml:"size" env:"SIZE"`
	TTL  time.Duration `toml:"ttl" env:"TTL"`
}

type StoreConfig struct {
	WriteRetries int `toml:"write_retries" env:"WRITE_RETRIES"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			DSN:      "task_database.db",
			LogLevel: "warn",
		},
		Server: ServerConfig{
			Addr:            ":8008",
			MaxSessions:     64,
			SessionTTL:      30 * time.Minute,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Auth: AuthConfig{
			Secret:   "development-insecure-secret-change-me",
			Issuer:   "sampletodoapp",
			Audience: "sampletodoapp-clients",
			TTL:      24 * time.Hour,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  time.Minute,
		},
		Store: StoreConfig{
			WriteRetries: 3,
		},
	}
}

// Load builds the configuration in priority order:
// 1. Defaults
// 2. TOML file at path (skipped when path is empty or the file does not exist)
// 3. .env in the working directory
// 4. TODO_* environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required when auth is enabled")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("server max_sessions must be positive")
	}
	if c.Store.WriteRetries < 1 {
		c.Store.WriteRetries = 1
	}
	return nil
}
