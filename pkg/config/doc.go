// Package config provides application configuration management.
//
// # Overview
//
// Settings start from Default, are overlaid by the YAML file named in
// USERSYNC_CONFIG_FILE when set, and finally by environment variables.
//
// # Configuration Structure
//
// Webhook settings:
//
//	CLERK_WEBHOOK_SIGNING_SECRET="whsec_..."  # required
//	USERSYNC_WEBHOOK_TOLERANCE="5m"
//
// Server settings:
//
//	USERSYNC_HOST="0.0.0.0"
//	USERSYNC_PORT="8080"
//	USERSYNC_HEALTH_PORT="9090"
//	USERSYNC_MAX_BODY_BYTES="1048576"
//
// Storage settings:
//
//	USERSYNC_STORAGE_DRIVER="postgres"  # postgres, sqlite
//	DATABASE_URL="postgres://localhost/usersync?sslmode=disable"
//	USERSYNC_POSTGRES_REPLICA_URLS="postgres://replica1/usersync"
//	USERSYNC_SQLITE_PATH="usersync.db"
//
// Cache settings:
//
//	USERSYNC_REDIS_URL="redis://localhost:6379/0"  # empty keeps the in-process cache only
//	USERSYNC_CACHE_TTL="5m"
//	USERSYNC_L1_CACHE_SIZE="1024"
//
// Read API and events:
//
//	USERSYNC_OIDC_ISSUER="https://issuer.example.com"
//	USERSYNC_OIDC_AUDIENCE="usersync"
//	USERSYNC_NATS_URL="nats://localhost:4222"
//	USERSYNC_NATS_SUBJECT_PREFIX="users"
//
// Observability settings:
//
//	USERSYNC_LOG_LEVEL="info"  # debug, info, warn, error
//	USERSYNC_METRICS_ENABLED="true"
//	USERSYNC_OTEL_ENABLED="true"
//	USERSYNC_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if errors.Is(err, config.ErrConfigMissing) {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
