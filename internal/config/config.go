// Package config loads client configuration from an optional YAML file and
// environment variables. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Config holds all client configuration.
type Config struct {
	// Backend selects the remote gateway: memory, rest or postgres.
	Backend string `yaml:"backend"`

	// REST backend
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`

	// Auth
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
	UserID    string `yaml:"user_id"`

	// Postgres backend
	DatabaseURL   string `yaml:"database_url"`
	MigrationsDir string `yaml:"migrations_dir"`

	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Core behaviour
	SerializeMutations  bool `yaml:"serialize_mutations"`
	VoteReloadOnFailure bool `yaml:"vote_reload_on_failure"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend:        BackendMemory,
		UserID:         "local",
		MigrationsDir:  "migrations",
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// SWALANG_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("SWALANG_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Backend = envOr("SWALANG_BACKEND", c.Backend)
	c.APIURL = envOr("SWALANG_API_URL", c.APIURL)
	c.APIKey = envOr("SWALANG_API_KEY", c.APIKey)
	c.Token = envOr("SWALANG_TOKEN", c.Token)
	c.JWTSecret = envOr("SWALANG_JWT_SECRET", c.JWTSecret)
	c.UserID = envOr("SWALANG_USER", c.UserID)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.MigrationsDir = envOr("SWALANG_MIGRATIONS", c.MigrationsDir)
	c.RequestTimeout = envDuration("SWALANG_REQUEST_TIMEOUT", c.RequestTimeout)
	c.SerializeMutations = envBool("SWALANG_SERIALIZE_MUTATIONS", c.SerializeMutations)
	c.VoteReloadOnFailure = envBool("SWALANG_VOTE_RELOAD_ON_FAILURE", c.VoteReloadOnFailure)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory:
	case BackendREST:
		if c.APIURL == "" {
			errs = append(errs, errors.New("SWALANG_API_URL is required for the rest backend"))
		}
		if c.APIKey == "" {
			errs = append(errs, errors.New("SWALANG_API_KEY is required for the rest backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("SWALANG_REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
