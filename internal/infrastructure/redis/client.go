package redis

import (
	"context"
	"crypto/tls"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/config"
)

// Client wraps the redis connection plus metadata.
type Client struct {
	Native *redis.Client
}

// Connect instantiates redis client and pings it once.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	options := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if logger != nil {
			logger.Warn("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		}
		_ = client.Close()
		return nil, err
	}

	return &Client{Native: client}, nil
}

// Ping reports reachability for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.Native.Ping(ctx).Err()
}

// Close redis connection.
func (c *Client) Close() error {
	if c == nil || c.Native == nil {
		return nil
	}
	return c.Native.Close()
}
