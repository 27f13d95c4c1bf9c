package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisConfig holds Redis store configuration.
type RedisConfig struct {
	// TTL expires the listing's items after the last write (0 = never)
	TTL time.Duration
}

// DefaultRedisConfig returns the default Redis store configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{}
}

// Redis keeps the items of one listing in a Redis list.
type Redis[T any] struct {
	redis *redis.Client
	key   string
	codec Codec[T]
	ttl   time.Duration
}

// NewRedis creates a Redis store for the listing identified by key.
// A nil codec stores items as JSON.
func NewRedis[T any](redisClient *redis.Client, key Key, codec Codec[T], cfg RedisConfig) *Redis[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if codec == nil {
		codec = JSON[T]()
	}
	if cfg.TTL < 0 {
		cfg.TTL = 0
	}
	return &Redis[T]{
		redis: redisClient,
		key:   key.String(),
		codec: codec,
		ttl:   cfg.TTL,
	}
}

// Key returns the Redis key holding the list.
func (r *Redis[T]) Key() string {
	return r.key
}

// Write appends items to the list.
func (r *Redis[T]) Write(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	payloads, size, err := encodeAll(r.codec, items)
	if err != nil {
		StoreErrors.WithLabelValues(backendRedis, "write").Inc()
		return err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.push(ctx, pipe, payloads)
		return nil
	})
	if err != nil {
		StoreErrors.WithLabelValues(backendRedis, "write").Inc()
		return fmt.Errorf("redis rpush: %w", err)
	}

	BytesWritten.WithLabelValues(backendRedis).Add(float64(size))
	return nil
}

// Clear deletes the list.
func (r *Redis[T]) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key).Err(); err != nil {
		StoreErrors.WithLabelValues(backendRedis, "clear").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Replace deletes the list and writes items in one MULTI/EXEC block.
func (r *Redis[T]) Replace(ctx context.Context, items []T) error {
	payloads, size, err := encodeAll(r.codec, items)
	if err != nil {
		StoreErrors.WithLabelValues(backendRedis, "replace").Inc()
		return err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(payloads) > 0 {
			r.push(ctx, pipe, payloads)
		}
		return nil
	})
	if err != nil {
		StoreErrors.WithLabelValues(backendRedis, "replace").Inc()
		return fmt.Errorf("redis replace: %w", err)
	}

	BytesWritten.WithLabelValues(backendRedis).Add(float64(size))
	return nil
}

// Read returns the list contents in insertion order.
func (r *Redis[T]) Read(ctx context.Context) ([]T, error) {
	payloads, err := r.redis.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		StoreErrors.WithLabelValues(backendRedis, "read").Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	items := make([]T, 0, len(payloads))
	for i, payload := range payloads {
		item, err := r.codec.Decode([]byte(payload))
		if err != nil {
			StoreErrors.WithLabelValues(backendRedis, "read").Inc()
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		items = append(items, item)
	}

	ItemsRead.WithLabelValues(backendRedis).Add(float64(len(items)))
	return items, nil
}

func (r *Redis[T]) push(ctx context.Context, pipe redis.Pipeliner, payloads [][]byte) {
	values := make([]interface{}, len(payloads))
	for i, p := range payloads {
		values[i] = p
	}
	pipe.RPush(ctx, r.key, values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
}
