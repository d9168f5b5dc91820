// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Auth      AuthConfig
	Gate      GateConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host    string
	Port    int
	GinMode string
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackendConfig holds the upstream API configuration.
type BackendConfig struct {
	URL           string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

// AuthConfig holds session cookie and token expiry configuration.
type AuthConfig struct {
	CookieSecure bool
	CookieDomain string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Skew         time.Duration
}

// GateConfig holds the request gate's route classification.
type GateConfig struct {
	LoginPath         string
	HomePath          string
	ProtectedPrefixes []string
	AuthOnlyPrefixes  []string
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	Type     string
	Host     string
	Port     string
	Password string
	DB       int
}

// RateLimitConfig holds the stream endpoint rate limit.
type RateLimitConfig struct {
	Requests int64
	Window   time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 8080),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Backend: BackendConfig{
			URL:           getEnv("BACKEND_URL", "http://localhost:8000"),
			Timeout:       time.Duration(getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30)) * time.Second,
			StreamTimeout: time.Duration(getEnvAsInt("BACKEND_STREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Auth: AuthConfig{
			CookieSecure: getEnvAsBool("AUTH_COOKIE_SECURE", true),
			CookieDomain: getEnv("AUTH_COOKIE_DOMAIN", ""),
			AccessTTL:    time.Duration(getEnvAsInt("AUTH_ACCESS_TTL_HOURS", 24)) * time.Hour,
			RefreshTTL:   time.Duration(getEnvAsInt("AUTH_REFRESH_TTL_HOURS", 168)) * time.Hour,
			Skew:         time.Duration(getEnvAsInt("AUTH_SKEW_SECONDS", 10)) * time.Second,
		},
		Gate: GateConfig{
			LoginPath:         getEnv("GATE_LOGIN_PATH", "/login"),
			HomePath:          getEnv("GATE_HOME_PATH", "/chat"),
			ProtectedPrefixes: getEnvAsList("GATE_PROTECTED_PREFIXES", "/chat,/account,/api/v1/chat,/api/v1/auth/session"),
			AuthOnlyPrefixes:  getEnvAsList("GATE_AUTH_ONLY_PREFIXES", "/login,/register"),
		},
		Cache: CacheConfig{
			Type:     getEnv("CACHE_TYPE", "redis"),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Requests: int64(getEnvAsInt("RATE_LIMIT_REQUESTS", 20)),
			Window:   time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList gets a comma-separated environment variable as a string slice.
func getEnvAsList(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
