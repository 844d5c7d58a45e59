package users

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/usersync/pkg/cache"
	"github.com/sirupsen/logrus"
)

// CachedReader serves user reads through a tag-aware cache. Entries are
// tagged so the Reconciler's invalidation reaches them, and a read that
// overlaps an invalidation of its tags is returned but not cached.
type CachedReader struct {
	store  Store
	cache  cache.Cache
	logger logrus.FieldLogger
}

// NewCachedReader creates a new cached reader
func NewCachedReader(store Store, c cache.Cache, logger logrus.FieldLogger) *CachedReader {
	return &CachedReader{
		store:  store,
		cache:  c,
		logger: logger,
	}
}

// Get returns a single user, tagged with the global and per-user tags
func (r *CachedReader) Get(ctx context.Context, id string) (*User, error) {
	key := fmt.Sprintf("user:%s", id)

	var u User
	if r.lookup(ctx, key, &u) {
		return &u, nil
	}

	stamp, stamped := r.stamp(ctx, GlobalTag(), IDTag(id))
	fetched, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if stamped {
		r.fill(ctx, key, fetched, stamp)
	}
	return fetched, nil
}

// List returns a page of users, tagged with the global tag only
func (r *CachedReader) List(ctx context.Context, limit, offset int) ([]*User, error) {
	key := fmt.Sprintf("users:list:%d:%d", limit, offset)

	var list []*User
	if r.lookup(ctx, key, &list) {
		return list, nil
	}

	stamp, stamped := r.stamp(ctx, GlobalTag())
	list, err := r.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	if stamped {
		r.fill(ctx, key, list, stamp)
	}
	return list, nil
}

func (r *CachedReader) lookup(ctx context.Context, key string, dest interface{}) bool {
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Discarding corrupt cache entry")
		return false
	}
	return true
}

// stamp must be taken before the store read
func (r *CachedReader) stamp(ctx context.Context, tags ...string) (cache.Stamp, bool) {
	stamp, err := r.cache.Generations(ctx, tags...)
	if err != nil {
		r.logger.WithError(err).WithField("tags", tags).Warn("Cache generation read failed, not caching")
		return cache.Stamp{}, false
	}
	return stamp, true
}

func (r *CachedReader) fill(ctx context.Context, key string, value interface{}, stamp cache.Stamp) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	stored, err := r.cache.SetIfCurrent(ctx, key, data, stamp)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		return
	}
	if !stored {
		r.logger.WithField("key", key).Debug("Tags invalidated during read, not caching")
	}
}
