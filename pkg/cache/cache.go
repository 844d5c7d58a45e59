package cache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for empty cache keys
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrInvalidStamp is returned when a stamp was not taken from the cache it is used with
	ErrInvalidStamp = errors.New("invalid cache stamp")
)

// Cache stores opaque values under keys and groups them by tag so related
// entries can be dropped together.
//
// Every InvalidateTags call advances the generation of the tags it names.
// Read-through callers take a Stamp before reading the source and fill with
// SetIfCurrent, so a value read before a concurrent invalidation is never
// cached after it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, tags ...string) error
	InvalidateTags(ctx context.Context, tags ...string) error
	Generations(ctx context.Context, tags ...string) (Stamp, error)
	SetIfCurrent(ctx context.Context, key string, value []byte, stamp Stamp) (bool, error)
	Close() error
}

// Stamp records the generation of each tag at the time it was taken
type Stamp struct {
	Tags []string
	Gens []uint64

	// per level, for Tiered
	layers []Stamp
}

func (s Stamp) valid() bool {
	return len(s.Tags) == len(s.Gens)
}

// GlobalTag tags reads that span every entity of a resource
func GlobalTag(resource string) string {
	return resource
}

// IDTag tags reads of a single entity
func IDTag(resource, id string) string {
	return fmt.Sprintf("%s:%s", resource, id)
}
