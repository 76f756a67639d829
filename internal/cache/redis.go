package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omnibridge/omnibridge/internal/config"
)

// RedisStore is the Redis-backed cache Store.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a Redis cache store from config.
func NewRedisStore(log *slog.Logger, cfg config.RedisConfig) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{
		client: client,
		logger: log.With(slog.String("component", "cache")),
	}
}

// Ping verifies connectivity. Called once at startup; a failure is surfaced
// there so misconfiguration is visible, but runtime operations still degrade.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value for key, or ok=false on miss or backend failure.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error("cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		return "", false
	}
	return value, true
}

// Set writes value under key with the given TTL. Failures are logged and dropped.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Error("cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Delete removes key. Failures are logged and dropped.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("cache delete failed", slog.String("key", key), slog.Any("error", err))
	}
}
