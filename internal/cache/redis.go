package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kindredapp/kindred/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForDailyLikes generates the Redis key for a user's like quota counter
// on a given calendar date.
func (c *RedisCache) KeyForDailyLikes(userID, date string) string {
	return fmt.Sprintf("quota:likes:%s:%s", userID, date)
}

// GetDailyLikeCount reads the quota counter. A missing key is a cache miss,
// reported via the ok flag so callers can fall back to the database.
func (c *RedisCache) GetDailyLikeCount(ctx context.Context, userID, date string) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForDailyLikes(userID, date)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // treat unparseable value as a miss
	}
	return n, true, nil
}

// SetDailyLikeCount primes the quota counter with a TTL covering the rest of
// the day.
func (c *RedisCache) SetDailyLikeCount(ctx context.Context, userID, date string, count int64, ttl time.Duration) error {
	return c.Client.Set(ctx, c.KeyForDailyLikes(userID, date), count, ttl).Err()
}

// DecrDailyLikes releases one quota slot, flooring at zero. Decrementing a
// missing counter would create a negative one, so that case deletes the key
// and the next read falls back to the database.
func (c *RedisCache) DecrDailyLikes(ctx context.Context, userID, date string) error {
	key := c.KeyForDailyLikes(userID, date)
	n, err := c.Client.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n < 0 {
		return c.Client.Del(ctx, key).Err()
	}
	return nil
}

// IncrDailyLikes bumps the quota counter and refreshes its TTL.
func (c *RedisCache) IncrDailyLikes(ctx context.Context, userID, date string, ttl time.Duration) (int64, error) {
	key := c.KeyForDailyLikes(userID, date)
	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.Client.Expire(ctx, key, ttl).Err()
	return n, nil
}
