package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the startup ping so a dead Redis fails fast
// instead of hanging service boot.
const connectTimeout = 2 * time.Second

// Client is a thin wrapper over go-redis carrying the byte-oriented
// get/set surface most of the service needs. Callers with richer needs
// reach the raw client through Redis.
type Client struct {
	rdb *redis.Client
}

// NewRedis dials the server and verifies it answers before returning.
func NewRedis(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Set writes key to value. A zero ttl means no expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get reads a key's raw bytes.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Ping reports whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis exposes the underlying client for commands the wrapper doesn't
// cover (transactions, sorted sets, scans).
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
