package values

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/models"
)

// DefaultCacheTTL bounds how long a fetched value set is served before a
// refetch is forced.
const DefaultCacheTTL = time.Hour

// Cache fronts a Fetcher with a per-filter TTL cache. Concurrent misses for
// the same filter are coalesced into a single upstream fetch; failed fetches
// are never cached.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	log     logger.Logger

	mu      sync.RWMutex
	entries map[string]*models.ValueSet
	group   singleflight.Group
}

func NewCache(fetcher Fetcher, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		log:     log,
		entries: make(map[string]*models.ValueSet),
	}
}

func cacheKey(def models.FilterDefinition) string {
	return def.Name + "|" + string(def.SourceType)
}

// Get returns the cached value set for def, fetching on miss or staleness.
// On fetch failure any stale entry stays in place and the error propagates.
func (c *Cache) Get(ctx context.Context, def models.FilterDefinition) ([]string, error) {
	key := cacheKey(def)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !entry.IsStale(c.ttl) {
		metrics.ValueCacheHitsTotal.Inc()
		return entry.Values, nil
	}
	metrics.ValueCacheMissesTotal.Inc()

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A coalesced caller may arrive after the winner already refreshed
		// the entry; Do serializes us behind it, so recheck before fetching.
		c.mu.RLock()
		fresh, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && !fresh.IsStale(c.ttl) {
			return fresh.Values, nil
		}

		fetched, err := c.fetcher.FetchValues(ctx, def)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = &models.ValueSet{
			FilterName: def.Name,
			Values:     fetched,
			FetchedAt:  time.Now(),
		}
		c.mu.Unlock()

		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.log.Debug("Coalesced value fetch", map[string]interface{}{"filter_name": def.Name})
	}
	return result.([]string), nil
}

// Invalidate drops the cached entry for one filter.
func (c *Cache) Invalidate(def models.FilterDefinition) {
	c.mu.Lock()
	delete(c.entries, cacheKey(def))
	c.mu.Unlock()
}

// Len reports how many value sets are cached, stale entries included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
