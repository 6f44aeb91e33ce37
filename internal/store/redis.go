package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pipeline:variable:"

// RedisVariables stores variables as plain redis string keys.
type RedisVariables struct {
	client *redis.Client
}

// NewRedisVariables connects to addr and verifies the connection with a ping.
func NewRedisVariables(ctx context.Context, addr, password string, db int) (*RedisVariables, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisVariables{client: client}, nil
}

func (r *RedisVariables) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisVariables) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}

func (r *RedisVariables) Close() error {
	return r.client.Close()
}
