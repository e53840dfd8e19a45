// Package config loads process settings from the environment and the job plan
// (instruments, timeframes, start date) from a JSON or YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DataDir           string        `env:"DATA_DIR"`
	LegacyDataDir     string        `env:"HISTORICAL_DATA_DIRECTORY"`
	UpstoxToken       string        `env:"UPSTOX_TOKEN"`
	UpstoxBaseURL     string        `env:"UPSTOX_BASE_URL" envDefault:"https://api.upstox.com"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"0"`
	MetricsAddress    string        `env:"METRICS_ADDR"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	ConfigFile        string        `env:"CONFIG_FILE" envDefault:"config.json"`
	Timezone          string        `env:"TIMEZONE" envDefault:"Asia/Kolkata"`
}

const defaultDataDir = "./data"

// Load reads .env when present and parses the environment into a Config.
func Load() (Config, error) {
	// Ignore error if .env is missing
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = cfg.LegacyDataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.RequestsPerSecond < 0 {
		return Config{}, fmt.Errorf("REQUESTS_PER_SECOND must not be negative, got %v", cfg.RequestsPerSecond)
	}

	return cfg, nil
}

// Location resolves Timezone, falling back to UTC when the zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func (c Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
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
