package social

import (
	"context"
	"sync"
	"time"

	"mint-radar/shared/logger"
	"mint-radar/shared/persist"

	"go.uber.org/zap"
)

// DocCache is the persisted document name of the resolver cache.
const DocCache = "twitter_cache"

type CacheEntry struct {
	Handles   []string `json:"handles"`
	FetchedAt int64    `json:"ts"`
}

// Cache maps normalized references to resolved handles. Entries older than ttl are stale.
type Cache struct {
	mu      sync.Mutex
	saveMu  sync.Mutex
	entries map[string]CacheEntry
	ttl     time.Duration
	backend persist.Backend
	log     *logger.Logger
}

func NewCache(backend persist.Backend, ttl time.Duration, appLogger *logger.Logger) *Cache {
	return &Cache{
		entries: map[string]CacheEntry{},
		ttl:     ttl,
		backend: backend,
		log:     appLogger.With("store", DocCache),
	}
}

func (c *Cache) Load(ctx context.Context) {
	entries := map[string]CacheEntry{}
	err := c.backend.Load(ctx, DocCache, &entries)
	if err != nil {
		c.log.Info("Resolver cache starts empty", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Get returns the fresh entry for key, if any.
func (c *Cache) Get(key string, now time.Time) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || now.Sub(time.Unix(e.FetchedAt, 0)) >= c.ttl {
		return nil, false
	}
	return append([]string(nil), e.Handles...), true
}

// Put stores handles under key and persists the cache. Stale entries are pruned on write.
func (c *Cache) Put(ctx context.Context, key string, handles []string, now time.Time) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	c.entries[key] = CacheEntry{Handles: append([]string{}, handles...), FetchedAt: now.Unix()}
	snapshot := make(map[string]CacheEntry, len(c.entries))
	for k, e := range c.entries {
		if now.Sub(time.Unix(e.FetchedAt, 0)) >= c.ttl {
			delete(c.entries, k)
			continue
		}
		snapshot[k] = e
	}
	c.mu.Unlock()

	if err := c.backend.Save(ctx, DocCache, snapshot); err != nil {
		c.log.Warn("Resolver cache write failed", zap.Error(err))
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
