// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Auth
	JWTSecret string

	// Payment provider callbacks
	WebhookSecret string

	// Sweep settings
	ExpiryCronSpec   string        // cron spec for the expiry sweep
	ReminderCronSpec string        // cron spec for the reminder sweep
	SweepTimeout     time.Duration // overall deadline per sweep run
	SweepBatchSize   int           // max contracts selected per run
	SweepParallelism int           // bounded per-item concurrency
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultExpiryCronSpec   = "0 5 0 * * *" // daily, 00:05 UTC
	DefaultReminderCronSpec = "0 0 9 * * *" // daily, 09:00 UTC
	DefaultDBMaxConns       = 10
	DefaultDBMinConns       = 2
	DefaultSweepTimeout     = 10 * time.Minute
	DefaultSweepBatchSize   = 500
	DefaultSweepParallelism = 8
)

// Load reads configuration from environment variables. A .env file is loaded
// first if present, for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:        getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxConns:       int32(getEnvInt("DB_MAX_CONNS", DefaultDBMaxConns)),
		DBMinConns:       int32(getEnvInt("DB_MIN_CONNS", DefaultDBMinConns)),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		ExpiryCronSpec:   getEnv("EXPIRY_CRON", DefaultExpiryCronSpec),
		ReminderCronSpec: getEnv("REMINDER_CRON", DefaultReminderCronSpec),
		SweepTimeout:     getEnvDuration("SWEEP_TIMEOUT", DefaultSweepTimeout),
		SweepBatchSize:   getEnvInt("SWEEP_BATCH_SIZE", DefaultSweepBatchSize),
		SweepParallelism: getEnvInt("SWEEP_PARALLELISM", DefaultSweepParallelism),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("config: JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
	}
	if cfg.WebhookSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("config: WEBHOOK_SECRET is required in production")
		}
		cfg.WebhookSecret = "dev-webhook-secret"
	}
	if cfg.SweepBatchSize <= 0 {
		return nil, fmt.Errorf("config: SWEEP_BATCH_SIZE must be positive")
	}
	if cfg.SweepParallelism <= 0 {
		return nil, fmt.Errorf("config: SWEEP_PARALLELISM must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
