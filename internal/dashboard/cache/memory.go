package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
)

type memoryEntry struct {
	snapshot  dashboarddomain.Snapshot
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryCache is the single-process fallback used when no Redis address is set.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
	locks   map[string]memoryLock
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		entries: map[string]memoryEntry{},
		locks:   map[string]memoryLock{},
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (dashboarddomain.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return dashboarddomain.Snapshot{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return dashboarddomain.Snapshot{}, false, nil
	}
	return entry.snapshot, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, snapshot dashboarddomain.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{snapshot: snapshot, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if held, ok := c.locks[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	c.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (c *MemoryCache) Release(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.locks[key]; ok && held.token == token {
		delete(c.locks, key)
	}
	return nil
}
