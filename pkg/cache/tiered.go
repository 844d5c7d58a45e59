package cache

import (
	"context"
	"errors"
)

// Tiered puts a process-local cache in front of a shared one.
//
// L2 hits are not copied into L1 because the L2 read does not carry tags;
// an untagged L1 entry would survive invalidation.
type Tiered struct {
	l1 Cache
	l2 Cache
}

// NewTiered creates a new two-level cache
func NewTiered(l1, l2 Cache) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get checks L1 then L2
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	return t.l2.Get(ctx, key)
}

// Set writes both levels
func (t *Tiered) Set(ctx context.Context, key string, value []byte, tags ...string) error {
	if err := t.l1.Set(ctx, key, value, tags...); err != nil {
		return err
	}
	return t.l2.Set(ctx, key, value, tags...)
}

// Generations stamps both levels
func (t *Tiered) Generations(ctx context.Context, tags ...string) (Stamp, error) {
	s1, err := t.l1.Generations(ctx, tags...)
	if err != nil {
		return Stamp{}, err
	}
	s2, err := t.l2.Generations(ctx, tags...)
	if err != nil {
		return Stamp{}, err
	}
	return Stamp{
		Tags:   s2.Tags,
		Gens:   s2.Gens,
		layers: []Stamp{s1, s2},
	}, nil
}

// SetIfCurrent fills L2 first and L1 only when L2 accepted the value
func (t *Tiered) SetIfCurrent(ctx context.Context, key string, value []byte, stamp Stamp) (bool, error) {
	if len(stamp.layers) != 2 {
		return false, ErrInvalidStamp
	}

	stored, err := t.l2.SetIfCurrent(ctx, key, value, stamp.layers[1])
	if err != nil || !stored {
		return false, err
	}
	return t.l1.SetIfCurrent(ctx, key, value, stamp.layers[0])
}

// InvalidateTags invalidates both levels, even when one of them fails
func (t *Tiered) InvalidateTags(ctx context.Context, tags ...string) error {
	return errors.Join(
		t.l1.InvalidateTags(ctx, tags...),
		t.l2.InvalidateTags(ctx, tags...),
	)
}

// Close closes both levels
func (t *Tiered) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}
