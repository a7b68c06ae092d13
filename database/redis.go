package database

import (
	"context"

	"tripsplit-backend/config"
	"tripsplit-backend/logger"

	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

// ConnectRedis wires the settlement-summary cache. The app runs fine
// without it; computation just skips the cache.
func ConnectRedis() {
	Redis = redis.NewClient(&redis.Options{
		Addr: config.AppConfig.RedisURL,
	})

	if _, err := Redis.Ping(context.Background()).Result(); err != nil {
		logger.Get().Warnw("redis not available, running without cache", "error", err)
		Redis = nil
		return
	}

	logger.Get().Info("redis connected")
}
