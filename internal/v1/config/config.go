// Package config loads and validates the process's environment into a typed
// Config, failing fast with an accumulated list of problems rather than one
// variable at a time.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the room engine.
type Config struct {
	// Required variables.
	ManagementSharedSecret string
	Port                   string

	// Optional with defaults.
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string
	DatabasePath    string

	// Redis backs the management rate limiter; disabled falls back to an
	// in-memory store.
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Room engine tuning (spec defaults noted per field).
	AdmissionCeiling    int64         // default 100000
	RateLimitInterval   time.Duration // default 3s, per-user chat throttle
	CoalesceWindow      time.Duration // default 1s, join/leave broadcast coalescing
	WriteBatchSize      int           // default 100
	WriteBatchInterval  time.Duration // default 200ms
	OutboundMailboxSize int           // default 10

	// Rate limit for the management HTTP surface (ulule/limiter format
	// string, e.g. "100-M").
	RateLimitManagementAPI string

	// Tracing is only initialized when set.
	OTelCollectorAddr string
}

// ValidateEnv validates all required environment variables and returns a
// Config. Returns an error joining every problem found, not just the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.ManagementSharedSecret = os.Getenv("MANAGEMENT_SHARED_SECRET")
	if cfg.ManagementSharedSecret == "" {
		errs = append(errs, "MANAGEMENT_SHARED_SECRET is required")
	} else if len(cfg.ManagementSharedSecret) < 32 {
		errs = append(errs, fmt.Sprintf("MANAGEMENT_SHARED_SECRET must be at least 32 characters (got %d)", len(cfg.ManagementSharedSecret)))
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/chatroom.db")
	cfg.OTelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	cfg.AdmissionCeiling = getEnvInt64OrDefault("ADMISSION_CEILING", 100000, &errs)
	cfg.RateLimitInterval = getEnvDurationOrDefault("RATE_LIMIT_INTERVAL_SECONDS", 3*time.Second, time.Second, &errs)
	cfg.CoalesceWindow = getEnvDurationOrDefault("COALESCE_WINDOW_MS", time.Second, time.Millisecond, &errs)
	cfg.WriteBatchSize = int(getEnvInt64OrDefault("WRITE_BATCH_SIZE", 100, &errs))
	cfg.WriteBatchInterval = getEnvDurationOrDefault("WRITE_BATCH_INTERVAL_MS", 200*time.Millisecond, time.Millisecond, &errs)
	cfg.OutboundMailboxSize = int(getEnvInt64OrDefault("OUTBOUND_MAILBOX_SIZE", 10, &errs))

	cfg.RateLimitManagementAPI = getEnvOrDefault("RATE_LIMIT_MANAGEMENT_API", "100-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated")
	slog.Info("configuration",
		"management_shared_secret", redactSecret(cfg.ManagementSharedSecret),
		"port", cfg.Port,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"admission_ceiling", cfg.AdmissionCeiling,
		"rate_limit_interval", cfg.RateLimitInterval,
		"coalesce_window", cfg.CoalesceWindow,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64, errs *[]string) int64 {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive integer (got '%s')", key, raw))
		return defaultValue
	}
	return v
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration, unit time.Duration, errs *[]string) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive integer (got '%s')", key, raw))
		return defaultValue
	}
	return time.Duration(v) * unit
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
