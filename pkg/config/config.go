package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "FOLLOWGRAPH"

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Auth      AuthConfig
	Relations RelationsConfig
	Recount   RecountConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string
	Driver       string // "postgres" or "memory"
	MaxIdleConns int
	MaxOpenConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL           string
	Enabled       bool
	VisibilityTTL time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RelationsConfig tunes the relationship service
type RelationsConfig struct {
	RetryAttempts        int
	RetryInitialInterval time.Duration
	ListDefaultLimit     int
	ListMaxLimit         int
}

// RecountConfig holds settings of the recount tool
type RecountConfig struct {
	Fix bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.followgraph")
	viper.AddConfigPath("/etc/followgraph")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	redisURL := getString("redis_url", "")
	cfg := &Config{
		Database: DatabaseConfig{
			URL:          getString("database_url", ""),
			Driver:       getString("store_driver", DriverPostgres),
			MaxIdleConns: getInt("database_max_idle_conns", 10),
			MaxOpenConns: getInt("database_max_open_conns", 100),
		},
		Redis: RedisConfig{
			URL:           redisURL,
			Enabled:       redisURL != "",
			VisibilityTTL: getDuration("visibility_cache_ttl", 30*time.Second),
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8080),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Auth: AuthConfig{
			JWTSecret: getString("jwt_secret", ""),
			Issuer:    getString("jwt_issuer", "followgraph"),
		},
		Relations: RelationsConfig{
			RetryAttempts:        getInt("store_retry_attempts", 3),
			RetryInitialInterval: getDuration("store_retry_initial_interval", 50*time.Millisecond),
			ListDefaultLimit:     getInt("list_default_limit", 50),
			ListMaxLimit:         getInt("list_max_limit", 500),
		},
		Recount: RecountConfig{
			Fix: getBool("recount_fix", false),
		},
		Logging: LoggingConfig{
			Level:  getString("log_level", "INFO"),
			Format: getString("log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", "http://localhost:14268/api/traces"),
			PrometheusEnabled: getBool("prometheus_enabled", true),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "followgraph"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("store_driver", DriverPostgres)
	viper.SetDefault("database_max_idle_conns", 10)
	viper.SetDefault("database_max_open_conns", 100)
	viper.SetDefault("visibility_cache_ttl", "30s")
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("jwt_issuer", "followgraph")
	viper.SetDefault("store_retry_attempts", 3)
	viper.SetDefault("store_retry_initial_interval", "50ms")
	viper.SetDefault("list_default_limit", 50)
	viper.SetDefault("list_max_limit", 500)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("telemetry_enabled", false)
	viper.SetDefault("prometheus_enabled", true)
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "followgraph")
}

func getString(key, defaultValue string) string {
	if val := os.Getenv(toEnvKey(key)); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return defaultValue
}

// toEnvKey maps a config key to its environment variable, e.g.
// log_level -> FOLLOWGRAPH_LOG_LEVEL
func toEnvKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database_url is required for the %s driver", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store_driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Relations.RetryAttempts < 1 || c.Relations.RetryAttempts > 10 {
		return fmt.Errorf("store_retry_attempts must be between 1 and 10")
	}
	if c.Relations.ListDefaultLimit <= 0 || c.Relations.ListMaxLimit < c.Relations.ListDefaultLimit {
		return fmt.Errorf("list_default_limit must be positive and not above list_max_limit")
	}
	if c.Redis.Enabled && c.Redis.VisibilityTTL <= 0 {
		return fmt.Errorf("visibility_cache_ttl must be positive")
	}
	return nil
}
