// Package config loads settings from the environment, with an optional
// YAML file overlay for values that change between deployments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration. The health/metrics server
// listens on its own port for probes.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthPort      string        `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	PrimaryURL  string        `yaml:"primary_url"`
	ReplicaURLs string        `yaml:"replica_urls"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
}

// RedisConfig holds cache settings. An empty URL disables caching.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DashboardTTL time.Duration `yaml:"dashboard_ttl"`
}

// AuthConfig holds session settings.
type AuthConfig struct {
	SessionTTL        time.Duration `yaml:"session_ttl"`
	PrincipalCacheTTL time.Duration `yaml:"principal_cache_ttl"`
	PrincipalCacheSize int          `yaml:"principal_cache_size"`
	// SessionCleanupSpec is a cron expression for purging expired sessions.
	SessionCleanupSpec string `yaml:"session_cleanup_spec"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel           string `yaml:"log_level"`
	MetricsEnabled     bool   `yaml:"metrics_enabled"`
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Load reads configuration from the environment, then overlays the YAML
// file named by VIGIA_CONFIG_FILE when set.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("VIGIA_HOST", "0.0.0.0"),
			Port:            getEnv("VIGIA_PORT", "8080"),
			ReadTimeout:     getEnvDuration("VIGIA_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("VIGIA_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("VIGIA_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("VIGIA_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("VIGIA_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			PrimaryURL:  getEnv("VIGIA_POSTGRES_URL", ""),
			ReplicaURLs: getEnv("VIGIA_POSTGRES_REPLICA_URLS", ""),
			MaxConns:    getEnvInt("VIGIA_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("VIGIA_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("VIGIA_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("VIGIA_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("VIGIA_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("VIGIA_REDIS_URL", ""),
			Password:     getEnv("VIGIA_REDIS_PASSWORD", ""),
			DB:           getEnvInt("VIGIA_REDIS_DB", 0),
			DashboardTTL: getEnvDuration("VIGIA_DASHBOARD_TTL", time.Minute),
		},
		Auth: AuthConfig{
			SessionTTL:         getEnvDuration("VIGIA_SESSION_TTL", 24*time.Hour),
			PrincipalCacheTTL:  getEnvDuration("VIGIA_PRINCIPAL_CACHE_TTL", 30*time.Second),
			PrincipalCacheSize: getEnvInt("VIGIA_PRINCIPAL_CACHE_SIZE", 1024),
			SessionCleanupSpec: getEnv("VIGIA_SESSION_CLEANUP_SPEC", "@hourly"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("VIGIA_LOG_LEVEL", "info"),
			MetricsEnabled:     getEnvBool("VIGIA_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("VIGIA_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("VIGIA_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("VIGIA_OTEL_SERVICE_NAME", "vigia"),
			OTelServiceVersion: getEnv("VIGIA_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("VIGIA_OTEL_INSECURE", true),
		},
	}

	if path := os.Getenv("VIGIA_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("VIGIA_POSTGRES_URL is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
