// Package config reads server settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings.
type Config struct {
	Port             int
	DBPath           string
	LogLevel         string
	LogFormat        string
	SchedulerEnabled bool
	SweepInterval    time.Duration
	EventBufferSize  int
	MonthlyDueDay    int
	// AllowedOrigins are host patterns (path.Match syntax, e.g.
	// "app.example.com" or "localhost:*") that browsers on other origins may
	// use for the API and the event stream. Empty means same origin only.
	AllowedOrigins []string
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:    getEnv("DB_PATH", "./data/flatlease.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AllowedOrigins: getList("ALLOWED_ORIGINS"),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.SchedulerEnabled, err = getBool("SCHEDULER_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EventBufferSize, err = getInt("EVENT_BUFFER_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.MonthlyDueDay, err = getInt("MONTHLY_DUE_DAY", 15); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be at least 1, got %d", c.EventBufferSize)
	}
	if c.MonthlyDueDay < 1 || c.MonthlyDueDay > 31 {
		return fmt.Errorf("MONTHLY_DUE_DAY must be between 1 and 31, got %d", c.MonthlyDueDay)
	}
	for _, p := range c.AllowedOrigins {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("ALLOWED_ORIGINS has invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getList splits a comma-separated variable, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
