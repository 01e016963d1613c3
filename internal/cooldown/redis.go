package cooldown

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore shares cooldowns between bot processes. Expiry is handled by
// Redis key TTLs.
type RedisStore struct {
	rdb *goredis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (time.Duration, bool, error) {
	acquired, err := s.rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if acquired {
		return 0, true, nil
	}
	left, err := s.Remaining(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return left, false, nil
}

func (s *RedisStore) Remaining(ctx context.Context, key string) (time.Duration, error) {
	left, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl %s: %w", key, err)
	}
	// negative values flag a missing key or a key without expiry
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
