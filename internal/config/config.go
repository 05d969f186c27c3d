// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server and integration settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                int
	MaxWSConnections    int // Hard cap on concurrent WebSocket connections
	MaxWSConnsPerIP     int // Per-IP WebSocket connection cap
	ShutdownGracePeriod time.Duration
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:                3000,
		MaxWSConnections:    500,
		MaxWSConnsPerIP:     10,
		ShutdownGracePeriod: 5 * time.Second,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
// Environment variables take precedence over defaults.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mc := getEnvInt("MAX_WS_CONNECTIONS", 0); mc > 0 {
		cfg.MaxWSConnections = mc
	}
	if mc := getEnvInt("MAX_WS_CONNECTIONS_PER_IP", 0); mc > 0 {
		cfg.MaxWSConnsPerIP = mc
	}

	return cfg
}

// =============================================================================
// MATCH HISTORY (REDIS)
// =============================================================================

// HistoryConfig holds the match-result handoff settings. Results are appended
// to a Redis stream consumed by the history service.
type HistoryConfig struct {
	Enabled  bool
	Addr     string // Redis host:port
	Password string
	DB       int
	Stream   string // Stream key results are appended to
}

// DefaultHistory returns the default history configuration.
func DefaultHistory() HistoryConfig {
	return HistoryConfig{
		Enabled: false, // Opt-in: results are dropped unless Redis is configured
		Addr:    "localhost:6379",
		Stream:  "arena:match-results",
	}
}

// HistoryFromEnv returns history configuration with environment variable overrides.
func HistoryFromEnv() HistoryConfig {
	cfg := DefaultHistory()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Enabled = true
		cfg.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Password = pass
	}
	if db := getEnvInt("REDIS_DB", 0); db > 0 {
		cfg.DB = db
	}
	if stream := os.Getenv("HISTORY_STREAM"); stream != "" {
		cfg.Stream = stream
	}

	return cfg
}

// =============================================================================
// PRESENCE (NATS)
// =============================================================================

// PresenceConfig holds player-availability broadcast settings. Transitions
// are published to a NATS subject so other services can gray out busy players.
type PresenceConfig struct {
	Enabled bool
	URL     string // NATS server URL
	Subject string // Subject availability transitions are published to
}

// DefaultPresence returns the default presence configuration.
func DefaultPresence() PresenceConfig {
	return PresenceConfig{
		Enabled: false, // Opt-in: transitions are dropped unless NATS is configured
		URL:     "nats://localhost:4222",
		Subject: "arena.presence",
	}
}

// PresenceFromEnv returns presence configuration with environment variable overrides.
func PresenceFromEnv() PresenceConfig {
	cfg := DefaultPresence()

	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.Enabled = true
		cfg.URL = url
	}
	if subject := os.Getenv("PRESENCE_SUBJECT"); subject != "" {
		cfg.Subject = subject
	}

	return cfg
}

// =============================================================================
// RATE LIMITS
// =============================================================================

// RateLimitConfig controls per-IP HTTP request limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultRateLimit returns production-safe defaults.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// RateLimitFromEnv returns rate limit configuration with environment variable overrides.
func RateLimitFromEnv() RateLimitConfig {
	cfg := DefaultRateLimit()

	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		cfg.RequestsPerSecond = rps
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.Burst = b
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server    ServerConfig
	History   HistoryConfig
	Presence  PresenceConfig
	RateLimit RateLimitConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:    ServerFromEnv(),
		History:   HistoryFromEnv(),
		Presence:  PresenceFromEnv(),
		RateLimit: RateLimitFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
