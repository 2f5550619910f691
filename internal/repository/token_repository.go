package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBlacklist remembers logged-out tokens until they would have expired.
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenString string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenString string) (bool, error)
}

type redisTokenBlacklist struct {
	redisClient *redis.Client
}

func NewTokenBlacklist(redisClient *redis.Client) TokenBlacklist {
	return &redisTokenBlacklist{redisClient: redisClient}
}

func blacklistKey(tokenString string) string { return "blacklist:" + tokenString }

func (r *redisTokenBlacklist) Revoke(ctx context.Context, tokenString string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.redisClient.Set(ctx, blacklistKey(tokenString), "true", ttl).Err()
}

func (r *redisTokenBlacklist) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	n, err := r.redisClient.Exists(ctx, blacklistKey(tokenString)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
