package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"veridraw-backend/internal/common/config"
)

// New creates a redis client from the service configuration and verifies the
// connection with a ping.
func New(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
