package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNilItem is returned when a nil item is stored or fetched.
	ErrNilItem = errors.New("nil item")

	// ErrInvalidKey indicates a key that cannot address an item
	ErrInvalidKey = errors.New("invalid cache key")
)

// Fetcher fetches one item by id or name. *catalog.API satisfies it.
type Fetcher interface {
	FetchItem(ctx context.Context, ref string) (*catalog.Item, error)
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Items   int
	Hits    int64
	Fetches int64
}

// Cache is the session item cache. The zero value is not usable; use New.
type Cache struct {
	fetcher Fetcher
	logger  zerolog.Logger

	mu    sync.RWMutex
	items map[int]*catalog.Item
	names map[string]int

	group   singleflight.Group
	hits    atomic.Int64
	fetches atomic.Int64
}

// New creates an empty cache backed by fetcher.
func New(fetcher Fetcher, logger zerolog.Logger) *Cache {
	if fetcher == nil {
		panic("cache fetcher cannot be nil")
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "item-cache").Logger(),
		items:   make(map[int]*catalog.Item),
		names:   make(map[string]int),
	}
}

// Resolve returns the item with the given id, fetching it on first use.
func (c *Cache) Resolve(ctx context.Context, id int) (*catalog.Item, error) {
	return c.ResolveKey(ctx, IDKey(id))
}

// ResolveKey returns the item addressed by key. A cached item is returned
// without any request; otherwise exactly one fetch is made and the result is
// stored under both its id and its name. Failed fetches are not cached.
func (c *Cache) ResolveKey(ctx context.Context, key Key) (*catalog.Item, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidKey, key)
	}

	if item, ok := c.Lookup(key); ok {
		c.hits.Add(1)
		CacheHits.WithLabelValues(key.Kind.String()).Inc()
		return item, nil
	}

	v, err, shared := c.group.Do(key.Kind.String()+":"+key.String(), func() (any, error) {
		// Another flight may have stored it between Lookup and Do.
		if item, ok := c.Lookup(key); ok {
			return item, nil
		}
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Str("key", key.String()).Msg("Joined in-flight item fetch")
	}
	return v.(*catalog.Item), nil
}

func (c *Cache) fetch(ctx context.Context, key Key) (*catalog.Item, error) {
	CacheMisses.Inc()
	c.fetches.Add(1)

	item, err := c.fetcher.FetchItem(ctx, key.String())
	if err != nil {
		FetchErrors.Inc()
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Item fetch failed")
		return nil, err
	}
	if item == nil {
		FetchErrors.Inc()
		return nil, fmt.Errorf("fetch %s: %w", key, ErrNilItem)
	}

	if err := c.Put(item); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("id", item.ID).
		Str("name", item.Name).
		Msg("Item cached")

	return item, nil
}

// Lookup returns a cached item without fetching.
func (c *Cache) Lookup(key Key) (*catalog.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id := key.ID
	if key.Kind == KindName {
		var ok bool
		if id, ok = c.names[key.Name]; !ok {
			return nil, false
		}
	}
	item, ok := c.items[id]
	return item, ok
}

// Put stores item under its id and its name in one step. An existing entry
// for the id is kept.
func (c *Cache) Put(item *catalog.Item) error {
	if item == nil {
		return ErrNilItem
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[item.ID]; exists {
		return nil
	}
	c.items[item.ID] = item
	c.names[strings.ToLower(item.Name)] = item.ID
	CacheEntries.Inc()

	return nil
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Items:   c.Len(),
		Hits:    c.hits.Load(),
		Fetches: c.fetches.Load(),
	}
}
