package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

var _ TileCache = (*RedisCache)(nil)

func (c *RedisCache) keyFor(k TileCacheKey) string {
	return fmt.Sprintf("tile:%s:%s", k.Provider, k.QuadKey)
}

func (c *RedisCache) pattern(provider string) string {
	return "tile:" + globEscaper.Replace(provider) + ":*"
}

var globEscaper = strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`, `\`, `\\`)

func (c *RedisCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	if err := c.client.Set(ctx, c.keyFor(k), []byte(v), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisCache) scan(ctx context.Context, provider string, fn func(key string) error) error {
	iter := c.client.Scan(ctx, 0, c.pattern(provider), 1000).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan error: %w", err)
	}
	return nil
}

func (c *RedisCache) Keys(ctx context.Context, provider string) ([]string, error) {
	prefix := "tile:" + provider + ":"
	var keys []string
	err := c.scan(ctx, provider, func(key string) error {
		keys = append(keys, strings.TrimPrefix(key, prefix))
		return nil
	})
	return keys, err
}

func (c *RedisCache) RemoveAll(ctx context.Context, provider string) error {
	return c.scan(ctx, provider, func(key string) error {
		return c.client.Del(ctx, key).Err()
	})
}

// PurgeOlderThan infers each entry's age from its remaining TTL, since
// every entry is written with the same expiry.
func (c *RedisCache) PurgeOlderThan(ctx context.Context, provider string, cutoff time.Time) (int, error) {
	maxRemaining := c.ttl - c.now().Sub(cutoff)
	removed := 0
	err := c.scan(ctx, provider, func(key string) error {
		remaining, err := c.client.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if remaining < 0 || remaining >= maxRemaining {
			return nil
		}
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *RedisCache) Stats(ctx context.Context, provider string) (Stats, error) {
	var s Stats
	err := c.scan(ctx, provider, func(key string) error {
		n, err := c.client.StrLen(ctx, key).Result()
		if err != nil {
			return err
		}
		s.Count++
		s.Bytes += n
		return nil
	})
	return s, err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
