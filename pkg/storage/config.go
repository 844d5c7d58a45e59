package storage

import (
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config for storage and cache backends
type Config struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs string        `yaml:"postgres_replica_urls"` // comma separated
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Cache config
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	L1CacheTTL  time.Duration `yaml:"l1_cache_ttl"`
	L1CacheSize int           `yaml:"l1_cache_size"` // entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:           DriverPostgres,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		SQLitePath:       "usersync.db",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheTTL:         5 * time.Minute,
		L1CacheTTL:       30 * time.Second,
		L1CacheSize:      1024,
	}
}

// ReplicaURLs splits PostgresReplicaURLs
func (c Config) ReplicaURLs() []string {
	var urls []string
	for _, u := range strings.Split(c.PostgresReplicaURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// RedisEnabled reports whether a shared cache is configured
func (c Config) RedisEnabled() bool {
	return c.RedisURL != ""
}
