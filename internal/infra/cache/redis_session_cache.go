package cache

import (
	"context"
	"time"

	"phonebook/internal/domain/service"
	"phonebook/internal/errors"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "user:"

func sessionKey(email string) string {
	return keyPrefix + email
}

// redisSessionCache implements service.SessionCache on Redis.
type redisSessionCache struct {
	client redis.UniversalClient
}

// NewRedisSessionCache creates a session cache backed by the given Redis client.
func NewRedisSessionCache(client redis.UniversalClient) service.SessionCache {
	return &redisSessionCache{client: client}
}

// Get retrieves a snapshot by email. A missing key is a miss, not an error.
func (c *redisSessionCache) Get(ctx context.Context, email string) ([]byte, bool, error) {
	if email == "" {
		return nil, false, errors.New("email cannot be empty")
	}

	result, err := c.client.Get(ctx, sessionKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Key doesn't exist
		}

		return nil, false, errors.Wrap(err, "redis get")
	}

	return result, true, nil
}

// Put stores a snapshot with the given TTL.
func (c *redisSessionCache) Put(ctx context.Context, email string, snapshot []byte, ttl time.Duration) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := c.client.Set(ctx, sessionKey(email), snapshot, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}

	return nil
}

// Invalidate removes the snapshot for email.
func (c *redisSessionCache) Invalidate(ctx context.Context, email string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}

	if err := c.client.Del(ctx, sessionKey(email)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}

	return nil
}
