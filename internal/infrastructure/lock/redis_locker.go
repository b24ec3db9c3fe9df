// Package lock provides the distributed consolidation lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"salescycle/internal/core/apperror"
	"salescycle/internal/domain/sales"
	"salescycle/pkg/logger"
)

// DefaultTTL bounds how long a crashed holder can block a key. It outlives
// sales.DefaultStampingTimeout.
const DefaultTTL = time.Minute

// KeyPrefix namespaces lock keys in a shared Redis.
const KeyPrefix = "salescycle:lock:"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// obtainer is the subset of *redislock.Client the locker needs.
type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// RedisLocker implements sales.Locker with bsm/redislock.
// It does not wait: a held key is reported immediately.
type RedisLocker struct {
	client obtainer
	ttl    time.Duration
}

var _ sales.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker over rdb. A zero ttl uses DefaultTTL.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl}
}

// Obtain implements sales.Locker.
func (l *RedisLocker) Obtain(ctx context.Context, key string) (sales.Lock, error) {
	lk, err := l.client.Obtain(ctx, KeyPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.Info(ctx, "lock held elsewhere", "key", key)
		return nil, apperror.NewConflict("another operation on these documents is in progress").
			WithDetail("lock_key", key)
	}
	if err != nil {
		return nil, apperror.NewExternalService("redis", err)
	}
	return lk, nil
}
