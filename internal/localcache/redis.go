package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the same keys in a Redis instance running next to the service.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

func (c *RedisCache) key(k string) (string, error) {
	if !keyRe.MatchString(k) {
		return "", ErrBadKey
	}
	return c.prefix + k, nil
}

func (c *RedisCache) Load(ctx context.Context, key string, v any) (bool, error) {
	k, err := c.key(key)
	if err != nil {
		return false, err
	}
	b, err := c.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("localcache %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Store(ctx context.Context, key string, v any) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localcache %s: %w", key, err)
	}
	return c.rdb.Set(ctx, k, b, 0).Err()
}

func (c *RedisCache) Remove(ctx context.Context, key string) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	return c.rdb.Del(ctx, k).Err()
}
