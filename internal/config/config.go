// Package config loads application configuration from .env, an optional
// config.yml and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultSessionSecret = "softwarnews-dev-secret-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env           string `mapstructure:"APP_ENV"`
	Port          string `mapstructure:"PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	VoteRateLimit  int           `mapstructure:"VOTE_RATE_LIMIT"`
	VoteRateWindow time.Duration `mapstructure:"VOTE_RATE_WINDOW"`

	CurationQueries  []string      `mapstructure:"CURATION_QUERIES"`
	CurationFeeds    []string      `mapstructure:"CURATION_FEEDS"`
	CurationBaseURL  string        `mapstructure:"CURATION_BASE_URL"`
	CurationLookback time.Duration `mapstructure:"CURATION_LOOKBACK"`
	CurationCacheTTL time.Duration `mapstructure:"CURATION_CACHE_TTL"`
	CurationTimeout  time.Duration `mapstructure:"CURATION_TIMEOUT"`
}

// DefaultCurationQueries are the search terms used when none are configured.
var DefaultCurationQueries = []string{
	"submarine", "army", "navy", "air force", "military",
	"department of defense", "weapon", "helicopter",
}

// Load reads .env (if present), config.yml (if present) and the environment.
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.CurationQueries = splitList(cfg.CurationQueries)
	cfg.CurationFeeds = splitList(cfg.CurationFeeds)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=softwarnews port=5432 sslmode=disable")
	v.SetDefault("SESSION_SECRET", defaultSessionSecret)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VOTE_RATE_LIMIT", 60)
	v.SetDefault("VOTE_RATE_WINDOW", time.Minute)
	v.SetDefault("CURATION_QUERIES", DefaultCurationQueries)
	v.SetDefault("CURATION_FEEDS", []string{})
	v.SetDefault("CURATION_BASE_URL", "https://hn.algolia.com")
	v.SetDefault("CURATION_LOOKBACK", 24*time.Hour)
	v.SetDefault("CURATION_CACHE_TTL", 10*time.Minute)
	v.SetDefault("CURATION_TIMEOUT", 10*time.Second)
}

// splitList trims entries and drops empty ones. Env values arrive as one
// comma separated element when the decode hook does not split them.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.VoteRateLimit < 0 {
		return errors.New("VOTE_RATE_LIMIT must not be negative")
	}

	if c.IsProduction() {
		if c.SessionSecret == defaultSessionSecret {
			return errors.New("SESSION_SECRET must be changed from the default value in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
	} else if len(c.SessionSecret) < 32 {
		slog.Warn("SESSION_SECRET is shorter than 32 characters")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
