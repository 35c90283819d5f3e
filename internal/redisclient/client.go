package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CreateSession stores an authenticated session token with a TTL
func (c *Client) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, sessionKey(token), userID, ttl).Err()
}

// GetSession resolves a session token to the user id it was issued for
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	userID, err := c.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// DeleteSession revokes a session token
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, sessionKey(token)).Err()
}

// InvalidateProductView drops the cached product display page so dependent
// views refresh after a cart or stock change.
func (c *Client) InvalidateProductView(ctx context.Context, slug string) error {
	return c.rdb.Del(ctx, "view:product:"+slug).Err()
}

// InvalidateCartView drops the owner's cached cart display page
func (c *Client) InvalidateCartView(ctx context.Context, ownerKey string) error {
	return c.rdb.Del(ctx, "view:cart:"+ownerKey).Err()
}

// CacheView stores a rendered view payload with a TTL
func (c *Client) CacheView(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, "view:"+key, payload, ttl).Err()
}

// GetCachedView retrieves a cached view payload; ok is false on a miss
func (c *Client) GetCachedView(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.rdb.Get(ctx, "view:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func sessionKey(token string) string {
	return "session:" + token
}
