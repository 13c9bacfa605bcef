package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Auth configuration
	Auth AuthConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// RateLimitConfig holds request rate limiting settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("QUARRY_HOST", "0.0.0.0"),
		Port:            getEnv("QUARRY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("QUARRY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("QUARRY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("QUARRY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("QUARRY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("QUARRY_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		PrimaryURL:  getEnv("QUARRY_POSTGRES_URL", ""),
		ReplicaURLs: parseURLList(getEnv("QUARRY_POSTGRES_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("QUARRY_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("QUARRY_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("QUARRY_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("QUARRY_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("QUARRY_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("QUARRY_REDIS_URL", ""),
		Password:   getEnv("QUARRY_REDIS_PASSWORD", ""),
		DB:         getEnvInt("QUARRY_REDIS_DB", 0),
		MaxRetries: getEnvInt("QUARRY_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("QUARRY_REDIS_POOL_SIZE", 10),
	}
}

// loadAuthConfig loads authentication configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       getEnv("QUARRY_JWT_SECRET", ""),
		AccessTokenTTL:  getEnvDuration("QUARRY_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("QUARRY_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:      getEnvInt("QUARRY_BCRYPT_COST", 12),
	}
}

// loadRateLimitConfig loads rate limiting configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("QUARRY_RATE_LIMIT_ENABLED", true),
		RequestsPerMinute: getEnvInt("QUARRY_RATE_LIMIT_RPM", 300),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("QUARRY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("QUARRY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("QUARRY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("QUARRY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("QUARRY_OTEL_SERVICE_NAME", "quarry"),
		OTelServiceVersion: getEnv("QUARRY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("QUARRY_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("postgres min connections cannot exceed max connections")
	}

	// Validate auth config
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 16 {
		return fmt.Errorf("bcrypt cost must be between 10 and 16")
	}

	// Validate rate limit config
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests per minute must be positive when enabled")
	}
	if c.RateLimit.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when rate limiting is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseURLList parses a comma-separated list of URLs
func parseURLList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
