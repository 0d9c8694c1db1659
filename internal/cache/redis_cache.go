package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const submissionKeyPrefix = "storefront:submission:"

type RedisSubmissionGuard struct {
	client *redis.Client
}

func NewRedisSubmissionGuard(addr string, password string, db int) *RedisSubmissionGuard {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSubmissionGuard{client: client}
}

func (g *RedisSubmissionGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisSubmissionGuard) Close() error {
	return g.client.Close()
}

func (g *RedisSubmissionGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, submissionKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (g *RedisSubmissionGuard) Release(ctx context.Context, key string) error {
	err := g.client.Del(ctx, submissionKeyPrefix+key).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
