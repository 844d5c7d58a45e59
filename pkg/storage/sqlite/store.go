package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/sirupsen/logrus"
)

// UserStore implements users.Store on SQLite. Timestamps are stored as unix
// milliseconds so the updated_at guard compares numbers.
type UserStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Open opens the database at path. ":memory:" gives a private in-memory
// database.
func Open(path string, logger logrus.FieldLogger) (*UserStore, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on&_busy_timeout=5000"
	} else {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.WithField("path", path).Info("SQLite store opened")
	return NewUserStore(db, logger), nil
}

// NewUserStore wraps an open handle
func NewUserStore(db *sql.DB, logger logrus.FieldLogger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the schema if needed
func (s *UserStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.db, s.logger)
}

// DB returns the handle for health checks
func (s *UserStore) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *UserStore) Close() error {
	return s.db.Close()
}

// Upsert inserts u or overwrites the stored row unless the stored row has a
// later updated_at.
func (s *UserStore) Upsert(ctx context.Context, u *users.User) (bool, error) {
	query := `
		INSERT INTO users (id, name, email, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			image_url = excluded.image_url,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
		WHERE users.updated_at <= excluded.updated_at
	`

	result, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.ImageURL, u.CreatedAt.UnixMilli(), u.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Delete removes the user with id
func (s *UserStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Get returns the user with id or users.ErrNotFound
func (s *UserStore) Get(ctx context.Context, id string) (*users.User, error) {
	query := `
		SELECT id, name, email, image_url, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List returns users ordered by creation time
func (s *UserStore) List(ctx context.Context, limit, offset int) ([]*users.User, error) {
	query := `
		SELECT id, name, email, image_url, created_at, updated_at
		FROM users
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	list := make([]*users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return list, nil
}

// Count returns the number of stored users
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*users.User, error) {
	var u users.User
	var createdAt, updatedAt int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	u.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &u, nil
}
