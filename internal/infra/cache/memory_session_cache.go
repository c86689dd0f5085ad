package cache

import (
	"context"
	"time"

	"phonebook/internal/domain/service"
	"phonebook/internal/errors"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	snapshot  []byte
	expiresAt time.Time
}

// memorySessionCache implements service.SessionCache in process.
// The LRU bounds size and applies maxTTL; each entry also honours the TTL it was put with.
type memorySessionCache struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

// NewMemorySessionCache creates an in-process cache holding at most size snapshots for at most maxTTL.
func NewMemorySessionCache(size int, maxTTL time.Duration) service.SessionCache {
	return newMemorySessionCache(size, maxTTL, time.Now)
}

func newMemorySessionCache(size int, maxTTL time.Duration, now func() time.Time) *memorySessionCache {
	return &memorySessionCache{
		entries: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now:     now,
	}
}

func (c *memorySessionCache) Get(_ context.Context, email string) ([]byte, bool, error) {
	if email == "" {
		return nil, false, errors.New("email cannot be empty")
	}

	entry, ok := c.entries.Get(sessionKey(email))
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(sessionKey(email))

		return nil, false, nil
	}

	return append([]byte(nil), entry.snapshot...), true, nil
}

func (c *memorySessionCache) Put(_ context.Context, email string, snapshot []byte, ttl time.Duration) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	c.entries.Add(sessionKey(email), memoryEntry{
		snapshot:  append([]byte(nil), snapshot...),
		expiresAt: c.now().Add(ttl),
	})

	return nil
}

func (c *memorySessionCache) Invalidate(_ context.Context, email string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}

	c.entries.Remove(sessionKey(email))

	return nil
}
