package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/platinummonkey/usersync/pkg/storage"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// ErrConfigMissing is returned when a required setting is absent. It is fatal
// at startup.
var ErrConfigMissing = errors.New("required configuration missing")

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// WebhookConfig holds the provider's signing settings
type WebhookConfig struct {
	SigningSecret string        `yaml:"signing_secret"`
	Tolerance     time.Duration `yaml:"tolerance"`
}

// AuthConfig holds OIDC settings for the read API
type AuthConfig struct {
	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCAudience string `yaml:"oidc_audience"`
}

// Enabled reports whether the read API requires bearer tokens
func (a AuthConfig) Enabled() bool {
	return a.OIDCIssuer != ""
}

// EventsConfig holds domain event publishing settings
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Enabled reports whether domain events are published
func (e EventsConfig) Enabled() bool {
	return e.NATSURL != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// Refresh schedule of usersync_users_total, in robfig/cron syntax
	UserCountSchedule string `yaml:"user_count_schedule"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Webhook: WebhookConfig{
			Tolerance: 5 * time.Minute,
		},
		Storage: storage.DefaultConfig(),
		Events: EventsConfig{
			SubjectPrefix: "users",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			UserCountSchedule:  "@every 1m",
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "usersync",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// USERSYNC_CONFIG_FILE if any, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("USERSYNC_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.applyServerEnv()
	c.applyWebhookEnv()
	c.applyStorageEnv()

	c.Auth.OIDCIssuer = getEnv("USERSYNC_OIDC_ISSUER", c.Auth.OIDCIssuer)
	c.Auth.OIDCAudience = getEnv("USERSYNC_OIDC_AUDIENCE", c.Auth.OIDCAudience)

	c.Events.NATSURL = getEnv("USERSYNC_NATS_URL", c.Events.NATSURL)
	c.Events.SubjectPrefix = getEnv("USERSYNC_NATS_SUBJECT_PREFIX", c.Events.SubjectPrefix)

	c.applyObservabilityEnv()
}

func (c *Config) applyServerEnv() {
	s := &c.Server
	s.Host = getEnv("USERSYNC_HOST", s.Host)
	s.Port = getEnv("USERSYNC_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("USERSYNC_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("USERSYNC_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("USERSYNC_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("USERSYNC_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("USERSYNC_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.HealthPort = getEnv("USERSYNC_HEALTH_PORT", s.HealthPort)
}

func (c *Config) applyWebhookEnv() {
	w := &c.Webhook
	// CLERK_WEBHOOK_SIGNING_SECRET is the name the provider's dashboard uses
	w.SigningSecret = getEnv("USERSYNC_WEBHOOK_SECRET", w.SigningSecret)
	w.SigningSecret = getEnv("CLERK_WEBHOOK_SIGNING_SECRET", w.SigningSecret)
	w.Tolerance = getEnvDuration("USERSYNC_WEBHOOK_TOLERANCE", w.Tolerance)
}

func (c *Config) applyStorageEnv() {
	s := &c.Storage
	s.Driver = getEnv("USERSYNC_STORAGE_DRIVER", s.Driver)

	// PostgreSQL config
	s.PostgresURL = getEnv("DATABASE_URL", s.PostgresURL)
	s.PostgresURL = getEnv("USERSYNC_POSTGRES_URL", s.PostgresURL)
	s.PostgresReplicaURLs = getEnv("USERSYNC_POSTGRES_REPLICA_URLS", s.PostgresReplicaURLs)
	if maxConns := getEnvInt("USERSYNC_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		s.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("USERSYNC_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		s.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("USERSYNC_POSTGRES_TIMEOUT", 0); timeout > 0 {
		s.PostgresTimeout = timeout
	}

	// SQLite config
	s.SQLitePath = getEnv("USERSYNC_SQLITE_PATH", s.SQLitePath)

	// Redis config
	s.RedisURL = getEnv("USERSYNC_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("USERSYNC_REDIS_PASSWORD", s.RedisPassword)
	if redisDB := getEnvInt("USERSYNC_REDIS_DB", -1); redisDB >= 0 {
		s.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("USERSYNC_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		s.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("USERSYNC_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		s.RedisPoolSize = redisPoolSize
	}

	// Cache config
	s.CacheTTL = getEnvDuration("USERSYNC_CACHE_TTL", s.CacheTTL)
	s.L1CacheTTL = getEnvDuration("USERSYNC_L1_CACHE_TTL", s.L1CacheTTL)
	if l1CacheSize := getEnvInt("USERSYNC_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		s.L1CacheSize = l1CacheSize
	}
}

func (c *Config) applyObservabilityEnv() {
	o := &c.Observability
	o.LogLevel = getEnv("USERSYNC_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("USERSYNC_METRICS_ENABLED", o.MetricsEnabled)
	o.UserCountSchedule = getEnv("USERSYNC_USER_COUNT_SCHEDULE", o.UserCountSchedule)
	o.OTelEnabled = getEnvBool("USERSYNC_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("USERSYNC_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("USERSYNC_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("USERSYNC_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("USERSYNC_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Webhook.SigningSecret == "" {
		return fmt.Errorf("%w: CLERK_WEBHOOK_SIGNING_SECRET is not set", ErrConfigMissing)
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server port", ErrConfigMissing)
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("%w: health port", ErrConfigMissing)
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	// Validate storage config based on driver
	switch c.Storage.Driver {
	case storage.DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("%w: postgres URL is required for postgres storage", ErrConfigMissing)
		}
	case storage.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite path is required for sqlite storage", ErrConfigMissing)
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite)", c.Storage.Driver)
	}

	if c.Observability.MetricsEnabled {
		if _, err := cron.ParseStandard(c.Observability.UserCountSchedule); err != nil {
			return fmt.Errorf("invalid user count schedule %q: %w", c.Observability.UserCountSchedule, err)
		}
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
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
