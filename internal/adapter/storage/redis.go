package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/redis/go-redis/v9"
)

var _ port.KVStorage = Redis{}

const (
	redisWriteAttempts = 3
	redisWriteDelay    = 50 * time.Millisecond
)

type RedisOpts struct {
	Addr     string
	Password string
	DB       int

	// TTL expires idle carts. Zero keeps them forever.
	TTL time.Duration
}

// redisClient is the part of [redis.Cmdable] the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Redis is a key-value store shared by several service instances.
type Redis struct {
	rdb      redisClient
	ttl      time.Duration
	retryCfg retry.RetryConfig
}

func NewRedis(ctx context.Context, opts RedisOpts) (Redis, error) {
	const op = "NewRedis"

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return Redis{}, fmt.Errorf("%s: redis is unavailable: %w", op, err)
	}
	slog.Info("redis is available", "op", op, "addr", opts.Addr)

	return newRedis(rdb, opts.TTL), nil
}

func newRedis(rdb redisClient, ttl time.Duration) Redis {
	return Redis{
		rdb: rdb,
		ttl: ttl,
		retryCfg: retry.RetryConfig{
			MaxAttempts: redisWriteAttempts,
			Backoff:     retry.ExponentialBackoff(redisWriteDelay),
			ShouldRetry: isRetryableRedisErr,
		},
	}
}

func (s Redis) Get(ctx context.Context, key string) (string, error) {
	const op = "Redis.Get"

	v, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, port.ErrKeyNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (s Redis) Set(ctx context.Context, key, value string) error {
	const op = "Redis.Set"

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.rdb.Set(ctx, key, value, s.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s Redis) Remove(ctx context.Context, key string) error {
	const op = "Redis.Remove"

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.rdb.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s Redis) Close() {
	const op = "Redis.Close"
	log := slog.With("op", op)

	log.Info("closing redis client...")

	if err := s.rdb.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("redis client is closed")
}

func isRetryableRedisErr(err error) bool {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, redis.ErrClosed) {
		return false
	}
	var redisErr redis.Error
	return !errors.As(err, &redisErr)
}
