package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedisClient connects to redis and checks the connection with a PING.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rc.Ping(pingCtx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return rc, nil
}
