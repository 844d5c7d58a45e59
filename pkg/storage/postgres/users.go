package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/sirupsen/logrus"
)

// UserStore implements users.Store on PostgreSQL.
//
// Get and List read the primary: their results fill the tagged cache, and a
// lagging replica would refill it with a row older than the last
// invalidation. Only Count, which feeds a gauge, is served by replicas.
type UserStore struct {
	conns  *ConnectionManager
	logger logrus.FieldLogger
}

// NewUserStore creates a new PostgreSQL user store
func NewUserStore(conns *ConnectionManager, logger logrus.FieldLogger) *UserStore {
	return &UserStore{
		conns:  conns,
		logger: logger,
	}
}

// Migrate creates the schema if needed
func (s *UserStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.conns.Primary(), s.logger)
}

// DB returns the primary handle for health checks
func (s *UserStore) DB() *sql.DB {
	return s.conns.Primary()
}

// HealthCheck pings the primary and every replica. It fails when the
// primary is down or when every replica is.
func (s *UserStore) HealthCheck(ctx context.Context) error {
	return s.conns.HealthCheck(ctx)
}

// Close closes every connection
func (s *UserStore) Close() error {
	return s.conns.Close()
}

// Upsert inserts u or overwrites the stored row unless the stored row has a
// later updated_at.
func (s *UserStore) Upsert(ctx context.Context, u *users.User) (bool, error) {
	query := `
		INSERT INTO users (id, name, email, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			image_url = EXCLUDED.image_url,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		WHERE users.updated_at <= EXCLUDED.updated_at
	`

	result, err := s.conns.Primary().ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.ImageURL, u.CreatedAt, u.UpdatedAt,
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
	result, err := s.conns.Primary().ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
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
		WHERE id = $1
	`

	var u users.User
	err := s.conns.Primary().QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.ImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// List returns users ordered by creation time
func (s *UserStore) List(ctx context.Context, limit, offset int) ([]*users.User, error) {
	query := `
		SELECT id, name, email, image_url, created_at, updated_at
		FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.conns.Primary().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	list := make([]*users.User, 0)
	for rows.Next() {
		var u users.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		u.UpdatedAt = u.UpdatedAt.UTC()
		list = append(list, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return list, nil
}

// Count returns the number of stored users
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conns.Replica().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
