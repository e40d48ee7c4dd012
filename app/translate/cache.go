package translate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store is an optional second cache tier shared across runs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Cache memoizes successful translations for the lifetime of a run. It is safe
// for concurrent use and never evicts. Failed translations are not cached.
type Cache struct {
	next    Translator
	store   Store
	mu      sync.RWMutex
	entries map[string]string
	hits    atomic.Int64
	misses  atomic.Int64
}

var _ Translator = (*Cache)(nil)

func NewCache(next Translator, store Store) *Cache {
	return &Cache{
		next:    next,
		store:   store,
		entries: make(map[string]string),
	}
}

func (c *Cache) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	key := cacheKey(text, sourceLang)

	c.mu.RLock()
	out, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return out, nil
	}

	if c.store != nil {
		out, ok, err := c.store.Get(ctx, key)
		if err != nil {
			slog.Warn("Translation store lookup failed", "error", err)
		} else if ok {
			c.hits.Add(1)
			c.put(key, out)
			return out, nil
		}
	}

	c.misses.Add(1)
	out, err := c.next.Translate(ctx, text, sourceLang)
	if err != nil {
		return "", err
	}

	c.put(key, out)
	if c.store != nil {
		if err := c.store.Set(ctx, key, out); err != nil {
			slog.Warn("Translation store write failed", "error", err)
		}
	}
	return out, nil
}

func (c *Cache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func cacheKey(text, sourceLang string) string {
	return sourceLang + "\x00" + text
}
