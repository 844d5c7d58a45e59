// Package storage holds the configuration shared by the user store and
// cache backends.
//
// # Backends
//
// pkg/storage/postgres: production store over lib/pq with optional read
// replicas.
//
// pkg/storage/sqlite: single-file store over mattn/go-sqlite3 for local
// development and tests.
//
// Both implement users.Store with the same semantics: upsert by provider id
// guarded by updated_at, idempotent delete.
//
// # Configuration
//
//	cfg := storage.DefaultConfig()
//	cfg.Driver = storage.DriverSQLite
//	cfg.SQLitePath = "/var/lib/usersync/users.db"
//	cfg.RedisURL = "redis://localhost:6379/0"
package storage
