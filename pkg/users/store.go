package users

import (
	"context"

	"github.com/platinummonkey/usersync/pkg/cache"
)

// Store persists users keyed by provider id
type Store interface {
	// Upsert inserts the user or overwrites its mutable fields. It reports
	// false when the stored row is newer than u and was left untouched.
	Upsert(ctx context.Context, u *User) (bool, error)
	// Delete removes the user. Deleting a missing id is not an error; the
	// boolean reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	Count(ctx context.Context) (int64, error)
}

// Invalidator drops cached reads by tag
type Invalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Publisher announces reconciled users to other services
type Publisher interface {
	PublishUserSynced(ctx context.Context, u *User) error
	PublishUserDeleted(ctx context.Context, id string) error
}

const resource = "users"

// GlobalTag tags every cached read that spans all users
func GlobalTag() string {
	return cache.GlobalTag(resource)
}

// IDTag tags cached reads of a single user
func IDTag(id string) string {
	return cache.IDTag(resource, id)
}
