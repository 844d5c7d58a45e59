// Package sqlite stores users in a local SQLite file for development and
// tests. It carries the same schema and upsert guard as the PostgreSQL store.
package sqlite
