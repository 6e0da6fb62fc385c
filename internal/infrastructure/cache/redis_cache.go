package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

// RedisCache is a ports.Cache backed by a shared Redis instance.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ ports.Cache = (*RedisCache)(nil)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, for example "trustlab:".
	Prefix string
}

func NewRedisCache(opts RedisOptions) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	return &RedisCache{client: client, prefix: opts.Prefix}
}

// Ping checks connectivity; callers decide whether a failure is fatal.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(err, "ping redis")
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	value, err := c.client.Get(ctx, c.prefix+trimmedKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(err, "redis get")
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+trimmedKey, value, ttl).Err(); err != nil {
		return errs.Wrap(err, "redis set")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.prefix+trimmedKey).Err(); err != nil {
		return errs.Wrap(err, "redis del")
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
