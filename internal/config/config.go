// Package config loads settings for the database check.
// Precedence, lowest first: YAML file, .env files, process environment, CLI flags.
// .env files never override variables already set in the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the check.
type Config struct {
	Env         string `koanf:"env"`
	DatabaseURL string `koanf:"database_url"`

	LivenessQuery string        `koanf:"liveness_query"`
	Timeout       time.Duration `koanf:"timeout"` // 0 waits forever
	MaxConns      int           `koanf:"max_conns"`

	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`
}

// Environment variable names.
const (
	EnvAppEnv        = "APP_ENV"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvLivenessQuery = "DB_LIVENESS_QUERY"
	EnvTimeout       = "DB_CHECK_TIMEOUT"
	EnvMaxConns      = "DB_MAX_CONNS"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFile       = "LOG_FILE"
)

const (
	DefaultEnv      = "development"
	DefaultLogLevel = "warn"
)

// DotEnvFiles returns the .env files to load, in order; earlier files win.
func DotEnvFiles() []string {
	return []string{".env.local", ".env"}
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrInvalidTimeout     = errors.New("timeout must be a non-negative duration")
	ErrInvalidMaxConns    = errors.New("max_conns must be a non-negative integer")
)

// LoadDotEnv loads the given .env files, skipping the ones that do not exist.
// It returns the files that were loaded.
func LoadDotEnv(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// Load reads the optional YAML file at configFilePath and applies environment
// overrides on top. It does not validate; call Validate once flags are applied.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	}

	cfg := &Config{
		Env:           getEnvOrKoanf(EnvAppEnv, k, "env"),
		DatabaseURL:   getEnvOrKoanf(EnvDatabaseURL, k, "database_url"),
		LivenessQuery: getEnvOrKoanf(EnvLivenessQuery, k, "liveness_query"),
		LogLevel:      strings.ToLower(getEnvOrKoanf(EnvLogLevel, k, "log_level")),
		LogFile:       getEnvOrKoanf(EnvLogFile, k, "log_file"),
	}

	if cfg.Env == "" {
		cfg.Env = DefaultEnv
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if raw := getEnvOrKoanf(EnvTimeout, k, "timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeout, raw)
		}
		cfg.Timeout = d
	}

	if raw := getEnvOrKoanf(EnvMaxConns, k, "max_conns"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMaxConns, raw)
		}
		cfg.MaxConns = n
	}

	return cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.Timeout < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.MaxConns < 0 {
		errs = append(errs, ErrInvalidMaxConns)
	}
	return errors.Join(errs...)
}

func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}
