// Package redisstore keeps refresh tokens in redis
// Entries expire by themselves, so there is no cleanup job
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type ConnConfig struct {
	Addr     string
	Password string
	DB       int
}

// Connect and make sure server is reachable
func Connect(ctx context.Context, cfg ConnConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed. Err: %w", err)
	}

	return client, nil
}
