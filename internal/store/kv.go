package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// Key layout
const (
	DeviceKeyPrefix = "telemetry:device:"
	LatestSuffix    = ":latest"
	AlarmsSuffix    = ":alarms"
)

func LatestKey(deviceID string) string { return DeviceKeyPrefix + deviceID + LatestSuffix }

func AlarmsKey(deviceID string) string { return DeviceKeyPrefix + deviceID + AlarmsSuffix }
