// Package config provides runtime configuration for the engine, loaded from
// an optional YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	LedgerDSN    string `yaml:"ledger_dsn"`
	HoldingsDSN  string `yaml:"holdings_dsn"`
	RedisAddr    string `yaml:"redis_addr"`
	LegacyDBPath string `yaml:"legacy_db_path"` // empty disables the legacy archive

	LogLevel string `yaml:"log_level"`

	RequestTTLHours      int `yaml:"request_ttl_hours"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	ShutdownTimeoutSecs  int `yaml:"shutdown_timeout_seconds"`

	Retry RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	JitterMaxMS int `yaml:"jitter_max_ms"`
}

func defaults() Config {
	return Config{
		HTTPAddr:             ":8080",
		GRPCAddr:             ":50051",
		LedgerDSN:            "root:root@tcp(localhost:3306)/stallworks_ledger?parseTime=true",
		HoldingsDSN:          "root:root@tcp(localhost:3306)/stallworks_holdings?parseTime=true",
		RedisAddr:            "localhost:6379",
		LogLevel:             "info",
		RequestTTLHours:      7 * 24,
		SweepIntervalSeconds: 60,
		ShutdownTimeoutSecs:  5,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 50,
			JitterMaxMS: 50,
		},
	}
}

// Load reads the YAML file at path (skipped when empty) and applies
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getenv("GRPC_ADDR", c.GRPCAddr)
	c.LedgerDSN = getenv("LEDGER_DSN", c.LedgerDSN)
	c.HoldingsDSN = getenv("HOLDINGS_DSN", c.HoldingsDSN)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.LegacyDBPath = getenv("LEGACY_DB_PATH", c.LegacyDBPath)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.RequestTTLHours = atoienv("REQUEST_TTL_HOURS", c.RequestTTLHours)
	c.SweepIntervalSeconds = atoienv("SWEEP_INTERVAL_SECONDS", c.SweepIntervalSeconds)
	c.ShutdownTimeoutSecs = atoienv("SHUTDOWN_TIMEOUT_SECONDS", c.ShutdownTimeoutSecs)
	c.Retry.MaxAttempts = atoienv("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.BaseDelayMS = atoienv("RETRY_BASE_DELAY_MS", c.Retry.BaseDelayMS)
	c.Retry.JitterMaxMS = atoienv("RETRY_JITTER_MAX_MS", c.Retry.JitterMaxMS)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c Config) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLHours) * time.Hour
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

func (c RetryConfig) JitterMax() time.Duration {
	return time.Duration(c.JitterMaxMS) * time.Millisecond
}
