package client

import (
	"context"
	"fmt"
	"storefront-payments/internal/config"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants a short-lived, non-renewable lease on key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisLockerImpl struct {
	rdb   *redis.Client
	owner string
}

func InitRedisClient(ctx context.Context, cfg *config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLockerImpl{
		rdb:   rdb,
		owner: uuid.NewString(),
	}
}

// TryLock relies on the TTL for release; a holder that dies keeps the lease
// until it expires.
func (l *redisLockerImpl) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// LocalLocker always grants the lease; used when the process runs alone.
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
