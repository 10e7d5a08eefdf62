package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/redis/go-redis/v9"
)

// NewClient builds a Redis client for cfg.
func NewClient(cfg config.Cache) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})
}

// SetupCache initializes the connection to the Redis server. An unreachable
// server is only logged; callers degrade per feature.
func SetupCache(cfg config.Cache) *redis.Client {
	client := NewClient(cfg)

	// Test the connection
	pong, err := client.Ping(context.Background()).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
	return client
}
