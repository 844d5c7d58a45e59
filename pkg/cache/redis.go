package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/usersync/pkg/storage"
)

const (
	valuePrefix = "usersync:cache:"
	tagPrefix   = "usersync:tag:"
	genPrefix   = "usersync:gen:"
)

// KEYS: pairs of tag set, tag generation. ARGV[1]: value key prefix.
var invalidateScript = redis.NewScript(`
for i = 1, #KEYS, 2 do
	redis.call('INCR', KEYS[i + 1])
	local members = redis.call('SMEMBERS', KEYS[i])
	for _, member in ipairs(members) do
		redis.call('DEL', ARGV[1] .. member)
	end
	redis.call('DEL', KEYS[i])
end
return 0
`)

// KEYS: value key, then pairs of tag set, tag generation.
// ARGV: member, value, ttl in ms, then the expected generation of each tag.
var setIfCurrentScript = redis.NewScript(`
local n = (#KEYS - 1) / 2
for i = 1, n do
	local gen = redis.call('GET', KEYS[2 * i + 1]) or '0'
	if gen ~= ARGV[3 + i] then
		return 0
	end
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
for i = 1, n do
	redis.call('SADD', KEYS[2 * i], ARGV[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[2 * i], ttl)
	end
end
return 1
`)

// RedisCache keeps values under plain keys and tag membership in Redis sets
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(config storage.Config) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.CacheTTL), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached value
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}

	data, err := c.client.Get(ctx, valuePrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, true, nil
}

// Set stores a value and adds its key to every tag set. Tag sets expire with
// their newest member.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, tags ...string) error {
	if key == "" {
		return ErrInvalidKey
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, valuePrefix+key, value, c.ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, tagPrefix+tag, key)
			if c.ttl > 0 {
				pipe.Expire(ctx, tagPrefix+tag, c.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Generations returns the current generation of each tag
func (c *RedisCache) Generations(ctx context.Context, tags ...string) (Stamp, error) {
	stamp := Stamp{Tags: append([]string(nil), tags...), Gens: make([]uint64, len(tags))}
	if len(tags) == 0 {
		return stamp, nil
	}

	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = genPrefix + tag
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Stamp{}, fmt.Errorf("failed to read tag generations: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		gen, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Stamp{}, fmt.Errorf("invalid generation for tag %s: %w", tags[i], err)
		}
		stamp.Gens[i] = gen
	}
	return stamp, nil
}

// SetIfCurrent stores value under the stamp's tags unless one of them was
// invalidated after the stamp was taken. The check and the write run as one
// script.
func (c *RedisCache) SetIfCurrent(ctx context.Context, key string, value []byte, stamp Stamp) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	if !stamp.valid() {
		return false, ErrInvalidStamp
	}

	keys := make([]string, 0, 1+2*len(stamp.Tags))
	keys = append(keys, valuePrefix+key)
	args := make([]interface{}, 0, 3+len(stamp.Tags))
	args = append(args, key, value, c.ttl.Milliseconds())
	for i, tag := range stamp.Tags {
		keys = append(keys, tagPrefix+tag, genPrefix+tag)
		args = append(args, strconv.FormatUint(stamp.Gens[i], 10))
	}

	stored, err := setIfCurrentScript.Run(ctx, c.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("redis conditional set failed: %w", err)
	}
	return stored == 1, nil
}

// InvalidateTags advances the generation of every tag and deletes the keys
// recorded under it together with the tag set. Each call is one script, so
// a concurrent Set lands either before it (and is deleted) or after it (and
// stays reachable through the new tag set).
func (c *RedisCache) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, 2*len(tags))
	for _, tag := range tags {
		keys = append(keys, tagPrefix+tag, genPrefix+tag)
	}
	if err := invalidateScript.Run(ctx, c.client, keys, valuePrefix).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tags %v: %w", tags, err)
	}
	return nil
}

// Client returns the underlying client for health checks
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
