// Package cache keeps computed admin summaries in Redis for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrRedisGet = errors.New("failed to read from cache")
	ErrRedisSet = errors.New("failed to write to cache")
)

// Store is the part of redis.Cmdable the cache needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Service struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(store Store, prefix string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{store: store, prefix: prefix, ttl: ttl, logger: logger}
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Get decodes the cached value into dest. A miss is (false, nil).
func (s *Service) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.store.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.Debug("Cache miss", zap.String("key", key))
			return false, nil
		}
		s.logger.Error("Failed to get value from cache", zap.Error(err), zap.String("key", key))
		return false, ErrRedisGet
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Error("Failed to unmarshal cached value", zap.Error(err), zap.String("key", key))
		return false, ErrRedisGet
	}
	return true, nil
}

func (s *Service) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Failed to marshal value for cache", zap.Error(err), zap.String("key", key))
		return ErrRedisSet
	}

	if err := s.store.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to cache value", zap.Error(err), zap.String("key", key))
		return ErrRedisSet
	}
	return nil
}

func (s *Service) Invalidate(ctx context.Context, key string) error {
	if err := s.store.Del(ctx, s.prefix+key).Err(); err != nil {
		s.logger.Error("Failed to invalidate cache key", zap.Error(err), zap.String("key", key))
		return ErrRedisSet
	}
	return nil
}
