package cache

import (
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const prefix = "shifter:"

type Cacher interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

type Options struct {
	MaxSize   int
	RedisAddr string
	RedisPass string
}

func New(opts Options) Cacher {
	if opts.RedisAddr == "" {
		return NewMemoryCache(opts.MaxSize)
	}
	return NewRedisCache(redis.NewClient(&redis.Options{
		Addr:            opts.RedisAddr,
		Password:        opts.RedisPass,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	}))
}

type MemoryCache struct {
	cache *freecache.Cache
}

func NewMemoryCache(size int) *MemoryCache {
	return &MemoryCache{cache: freecache.NewCache(size)}
}

func (m *MemoryCache) Get(_ context.Context, key string, value any) error {
	data, err := m.cache.Get([]byte(prefix + key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return ErrMiss
		}
		return err
	}
	return msgpack.Unmarshal(data, value)
}

func (m *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return m.cache.Set([]byte(prefix+key), data, int(expiration.Seconds()))
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Del([]byte(prefix + key))
	}
	return nil
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string, value any) error {
	data, err := r.client.Get(ctx, prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return msgpack.Unmarshal(data, value)
}

func (r *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, prefix+key, data, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = prefix + key
	}
	return r.client.Del(ctx, prefixed...).Err()
}

// Fetch returns the cached value for key, calling fn and storing its result
// on a miss. Any other cache failure falls through to fn without caching.
func Fetch[T any](ctx context.Context, c Cacher, key string, expiration time.Duration, fn func() (T, error)) (T, error) {
	var value T
	err := c.Get(ctx, key, &value)
	if err == nil {
		return value, nil
	}
	value, err = fn()
	if err != nil {
		var zero T
		return zero, err
	}
	_ = c.Set(ctx, key, value, expiration)
	return value, nil
}
