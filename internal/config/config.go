// Package config defines process configuration and its loading.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // timezone lookups work on hosts without zoneinfo
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend.
	Store       string `koanf:"store"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresURL string `koanf:"postgres_url"`

	// RedisAddr enables the published leaderboard cache when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	NYTBaseURL           string  `koanf:"nyt_base_url"`
	NYTToken             string  `koanf:"nyt_token"`
	NYTTimeoutMS         int     `koanf:"nyt_timeout_ms"`
	NYTRequestsPerSecond float64 `koanf:"nyt_requests_per_second"`
	FetchAttempts        int     `koanf:"fetch_attempts"`
	FetchRetryDelayMS    int     `koanf:"fetch_retry_delay_ms"`

	// Timezone decides which puzzle day "today" is.
	Timezone string `koanf:"timezone"`

	RatingMu    float64 `koanf:"rating_mu"`
	RatingSigma float64 `koanf:"rating_sigma"`
	ScoreScale  float64 `koanf:"score_scale"`

	// TrailingWindows lists the trailing window lengths in days.
	TrailingWindows []int `koanf:"trailing_windows"`

	// MaxLeaderboardLimit caps GET /leaderboard/{window}?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Store:                StoreSQLite,
		SQLitePath:           "minirank.db",
		NYTBaseURL:           "https://www.nytimes.com",
		NYTTimeoutMS:         10_000,
		NYTRequestsPerSecond: 1,
		FetchAttempts:        3,
		FetchRetryDelayMS:    5_000,
		Timezone:             "America/Denver",
		RatingMu:             25,
		RatingSigma:          25.0 / 3.0,
		ScoreScale:           60,
		TrailingWindows:      []int{30, 90},
		MaxLeaderboardLimit:  100,
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if !slices.Contains([]string{StoreMemory, StoreSQLite, StorePostgres}, c.Store) {
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownStore, c.Store)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	}
	if c.Store == StorePostgres && c.PostgresURL == "" {
		return fmt.Errorf("%w: postgres_url must not be empty", ErrInvalidConfig)
	}
	if !(c.RatingSigma > 0) {
		return fmt.Errorf("%w: rating_sigma must be positive", ErrInvalidConfig)
	}
	if !(c.ScoreScale > 0) {
		return fmt.Errorf("%w: score_scale must be positive", ErrInvalidConfig)
	}
	for _, n := range c.TrailingWindows {
		if n <= 0 {
			return fmt.Errorf("%w: trailing window %d must be positive", ErrInvalidConfig, n)
		}
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("%w: fetch_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w %q: %v", ErrInvalidConfig, ErrUnknownTimezone, c.Timezone, err)
	}
	return loc, nil
}

// NYTTimeout returns the per-request timeout.
func (c *Config) NYTTimeout() time.Duration {
	return time.Duration(c.NYTTimeoutMS) * time.Millisecond
}

// FetchRetryDelay returns the delay between fetch attempts.
func (c *Config) FetchRetryDelay() time.Duration {
	return time.Duration(c.FetchRetryDelayMS) * time.Millisecond
}
