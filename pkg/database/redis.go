package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"blgu-assess-go/pkg/log"
)

var RDB *redis.Client

// InitRedis connects the shared redis client and pings it.
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}
	log.Info("Redis client connected successfully")
}
