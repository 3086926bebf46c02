package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "microblog:counter:"

// RedisConfig holds the connection settings of a RedisCounter.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCounter increments counters stored as Redis integers, so every
// instance of the service adds to the same totals.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter connects to Redis and verifies the connection.
func NewRedisCounter(cfg RedisConfig) (*RedisCounter, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Address, err)
	}

	return newRedisCounter(client, cfg.KeyPrefix), nil
}

func newRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) key(name string) string {
	return c.prefix + name
}

// Increment runs INCR on the counter's key.
func (c *RedisCounter) Increment(ctx context.Context, name string) error {
	if err := c.client.Incr(ctx, c.key(name)).Err(); err != nil {
		return fmt.Errorf("incr %s: %w", c.key(name), err)
	}
	return nil
}

// Value reads a counter. A counter never incremented is zero.
func (c *RedisCounter) Value(ctx context.Context, name string) (int64, error) {
	n, err := c.client.Get(ctx, c.key(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", c.key(name), err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
