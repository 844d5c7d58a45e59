package cache

import (
	"context"

	"github.com/platinummonkey/usersync/pkg/observability"
)

// Instrumented records hits and misses of the wrapped cache
type Instrumented struct {
	Cache
	layer   string
	metrics *observability.Metrics
}

// Instrument wraps c so reads are counted under layer
func Instrument(c Cache, layer string, metrics *observability.Metrics) Cache {
	if metrics == nil {
		return c
	}
	return &Instrumented{Cache: c, layer: layer, metrics: metrics}
}

// Get retrieves a value and counts the outcome
func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := i.Cache.Get(ctx, key)
	if err == nil {
		i.metrics.RecordCacheLookup(i.layer, ok)
	}
	return v, ok, err
}
