package cache

import (
	"context"
	"sync"
	"time"

	"github.com/maktab-uz/maktab/core"
)

var NowFunc = time.Now // mockable

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemory is a process-local core.Cache. Expired entries are dropped when read or on Purge.
type InMemory struct {
	mutex sync.RWMutex
	items map[string]entry
}

var _ core.Cache = (*InMemory)(nil) // interface compliance check

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[string]entry)}
}

func (c *InMemory) Get(_ context.Context, key string) (string, error) {
	c.mutex.RLock()
	e, ok := c.items[key]
	c.mutex.RUnlock()

	if !ok {
		return "", core.ErrCacheMiss
	}
	if e.expired(NowFunc()) {
		c.mutex.Lock()
		if cur, ok := c.items[key]; ok && cur.expired(NowFunc()) {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return "", core.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value under key. A ttl <= 0 keeps the entry until deleted.
func (c *InMemory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = NowFunc().Add(ttl)
	}
	c.mutex.Lock()
	c.items[key] = e
	c.mutex.Unlock()
	return nil
}

func (c *InMemory) Delete(_ context.Context, keys ...string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}

// Purge drops every expired entry and returns how many were dropped.
func (c *InMemory) Purge() int {
	now := NowFunc()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var n int
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included until purged.
func (c *InMemory) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Flush drops every entry.
func (c *InMemory) Flush() {
	c.mutex.Lock()
	c.items = make(map[string]entry)
	c.mutex.Unlock()
}
