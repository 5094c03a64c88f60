package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quorum/internal/adapters/config"
	"quorum/pkg/errors"
)

const pingTimeout = 3 * time.Second

// Client wraps Redis client. It backs the market data cache, the workflow
// run archive and the watchlist lock.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: pingTimeout,
		MaxRetries:  1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(errors.ErrUnavailable, "redis %s: %v", cfg.Addr(), err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return translate(c.rdb.Ping(ctx).Err())
}

// Set stores a JSON-encoded value with optional TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return translate(c.rdb.Set(ctx, key, data, ttl).Err())
}

// Get decodes the value under key into dest. A missing key returns ErrNotFound.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return translate(err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}
	return nil
}

// Keys lists keys matching pattern using SCAN.
func (c *Client) Keys(ctx context.Context, pattern string, limit int) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, translate(err)
		}
		keys = append(keys, batch...)
		if limit > 0 && len(keys) >= limit {
			return keys[:limit], nil
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(key), "1", ttl).Result()
	return ok, translate(err)
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, key string) error {
	return translate(c.rdb.Del(ctx, lockKey(key)).Err())
}

func lockKey(key string) string {
	return "lock:" + key
}

// translate maps driver errors onto domain sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return errors.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return errors.Wrapf(errors.ErrUnavailable, "redis: %v", err)
	}
}
