// Package config loads storefront configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the storefront server.
type Config struct {
	Addr string `yaml:"addr" env:"STOREFRONT_ADDR"`
	Env  string `yaml:"env" env:"STOREFRONT_ENV"`

	JWTSecret string        `yaml:"jwt_secret" env:"STOREFRONT_JWT_SECRET"`
	JWTTTL    time.Duration `yaml:"jwt_ttl" env:"STOREFRONT_JWT_TTL"`

	CORSOrigins string `yaml:"cors_origins" env:"STOREFRONT_CORS_ORIGINS"`

	RateLimit      int           `yaml:"rate_limit" env:"STOREFRONT_RATE_LIMIT"`
	RateWindow     time.Duration `yaml:"rate_window" env:"STOREFRONT_RATE_WINDOW"`
	AuthRateLimit  int           `yaml:"auth_rate_limit" env:"STOREFRONT_AUTH_RATE_LIMIT"`
	AuthRateWindow time.Duration `yaml:"auth_rate_window" env:"STOREFRONT_AUTH_RATE_WINDOW"`

	CacheTTL               time.Duration `yaml:"cache_ttl" env:"STOREFRONT_CACHE_TTL"`
	CacheMaxEntries        int           `yaml:"cache_max_entries" env:"STOREFRONT_CACHE_MAX_ENTRIES"`
	CacheInvalidateOnWrite bool          `yaml:"cache_invalidate_on_write" env:"STOREFRONT_CACHE_INVALIDATE_ON_WRITE"`

	LockoutThreshold int           `yaml:"lockout_threshold" env:"STOREFRONT_LOCKOUT_THRESHOLD"`
	LockoutWindow    time.Duration `yaml:"lockout_window" env:"STOREFRONT_LOCKOUT_WINDOW"`

	DatabaseURL string `yaml:"database_url" env:"STOREFRONT_DATABASE_URL"`
	LogLevel    string `yaml:"log_level" env:"STOREFRONT_LOG_LEVEL"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Addr:             ":8080",
		Env:              "development",
		JWTTTL:           24 * time.Hour,
		CORSOrigins:      "http://localhost:3000,http://localhost:5173",
		RateLimit:        100,
		RateWindow:       15 * time.Minute,
		AuthRateLimit:    10,
		AuthRateWindow:   60 * time.Minute,
		CacheTTL:         5 * time.Minute,
		CacheMaxEntries:  100,
		LockoutThreshold: 5,
		LockoutWindow:    15 * time.Minute,
		LogLevel:         "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped
// when path is empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Production() && c.JWTSecret == "" {
		return fmt.Errorf("STOREFRONT_JWT_SECRET is required in production")
	}
	if c.RateLimit <= 0 || c.AuthRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.LockoutThreshold <= 0 {
		return fmt.Errorf("lockout threshold must be positive")
	}
	return nil
}

// Production reports whether the server runs in production mode.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Origins returns the CORS allow-list.
func (c Config) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
