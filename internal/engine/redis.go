package engine

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

const redisKeyPrefix = "checkin:"

// RedisStore keeps each persisted key as a plain Redis string.
type RedisStore struct {
	rc      *redis.Client
	timeout time.Duration
}

// NewRedisStore connects to addr and verifies the connection with a ping.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, err
	}
	return &RedisStore{rc: rc, timeout: 2 * time.Second}, nil
}

func (r *RedisStore) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	val, err := r.rc.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", sdk.ErrKeyNotFound
	}
	return val, err
}

func (r *RedisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.rc.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}

func (r *RedisStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.rc.Del(ctx, redisKeyPrefix+key).Err()
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.rc.Close()
}
