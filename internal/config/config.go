package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a value empty.
const (
	// DefaultConfigFile is the config file name looked up in the working directory.
	DefaultConfigFile = "config.yaml"
	// DefaultServerAddr is the listen address of the HTTP server.
	DefaultServerAddr = ":8000"
	// DefaultTokenExpireMinutes is the access token lifetime.
	DefaultTokenExpireMinutes = 30
	// DefaultForceLogoutChannel is the redis channel used for force logout fan-out.
	DefaultForceLogoutChannel = "stationportal:force_logout"
	// DefaultSessionRetentionDays is how long closed session history rows are kept.
	DefaultSessionRetentionDays = 90
	// DefaultCleanupSchedule is the cron spec of the session retention job.
	DefaultCleanupSchedule = "@every 6h"
	// DefaultMetricsPath is the route serving prometheus metrics.
	DefaultMetricsPath = "/metrics"
	// DefaultMaxOpenConns is the postgres pool size.
	DefaultMaxOpenConns = 25
)

// ErrMissingDSN is returned when no database DSN is configured.
var ErrMissingDSN = errors.New("config: database dsn is empty")

// AppConfig holds command-line level settings.
type AppConfig struct {
	ConfigPath string // Path to the YAML config file.
}

// Config is the parsed server configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sessions SessionsConfig `yaml:"sessions"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`         // Listen address.
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins, "*" allows all.
}

// DatabaseConfig configures the database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`            // Postgres URL/keyword DSN or sqlite file path.
	TimeZone     string `yaml:"time_zone"`      // IANA zone sales dates are recorded in; empty uses the host zone.
	MaxOpenConns int    `yaml:"max_open_conns"` // Postgres pool size.
}

// JWTConfig configures access token signing.
type JWTConfig struct {
	Secret        string `yaml:"secret"`         // HMAC signing secret.
	ExpireMinutes int    `yaml:"expire_minutes"` // Token lifetime in minutes.
}

// Expiry returns the token lifetime as a duration.
func (c JWTConfig) Expiry() time.Duration {
	if c.ExpireMinutes <= 0 {
		return DefaultTokenExpireMinutes * time.Minute
	}
	return time.Duration(c.ExpireMinutes) * time.Minute
}

// RedisConfig configures the redis broker. An empty Addr disables redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error.
	Format     string `yaml:"format"`      // text or json.
	File       string `yaml:"file"`        // Optional rotating log file.
	MaxSizeMB  int    `yaml:"max_size_mb"` // Rotation size.
	MaxBackups int    `yaml:"max_backups"` // Rotated files kept.
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// SessionsConfig configures session bookkeeping.
type SessionsConfig struct {
	RetentionDays   int    `yaml:"retention_days"`
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ResolveConfigPath returns the config path, falling back to env and the working directory.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return filepath.Clean(trimmed)
	}
	if env := strings.TrimSpace(os.Getenv("STATIONPORTAL_CONFIG")); env != "" {
		return filepath.Clean(env)
	}
	return DefaultConfigFile
}

// ConfigExists reports whether a config file exists at path.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads the config file at path, applies env overrides and defaults.
// A missing file yields a config built from env and defaults only.
func Load(path string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadDatabaseDSN returns the configured database DSN.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return "", ErrMissingDSN
	}
	return cfg.Database.DSN, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_TIME_ZONE")); v != "" {
		cfg.Database.TimeZone = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_EXPIRE_MINUTES")); v != "" {
		if n, errParse := strconv.Atoi(v); errParse == nil && n > 0 {
			cfg.JWT.ExpireMinutes = n
		}
	}
}

// applyDefaults fills empty values.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.JWT.ExpireMinutes <= 0 {
		cfg.JWT.ExpireMinutes = DefaultTokenExpireMinutes
	}
	if strings.TrimSpace(cfg.Redis.Channel) == "" {
		cfg.Redis.Channel = DefaultForceLogoutChannel
	}
	if cfg.Sessions.RetentionDays == 0 {
		cfg.Sessions.RetentionDays = DefaultSessionRetentionDays
	}
	if strings.TrimSpace(cfg.Sessions.CleanupSchedule) == "" {
		cfg.Sessions.CleanupSchedule = DefaultCleanupSchedule
	}
	if strings.TrimSpace(cfg.Metrics.Path) == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}
