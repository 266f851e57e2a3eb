// Package redis keeps the last seen top of book per venue in Redis, so the
// HTTP read side can answer market queries without touching the decision
// loop or a dark venue.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the startup ping.
const connectTimeout = 5 * time.Second

// ClientConfig is the connection surface the agent needs: one server, one
// logical database.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TLS      bool
}

// Client owns the shared go-redis connection pool.
type Client struct {
	rdb *redis.Client
}

// New opens the pool and verifies the server is reachable before handing the
// client out.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the driver for the cache implementations in this
// package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
