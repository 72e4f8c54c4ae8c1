package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aq2208/gorder-pickup/configs"
)

// NewRedisClient connects and pings so a bad address fails at startup.
func NewRedisClient(ctx context.Context, c configs.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return rdb, nil
}
