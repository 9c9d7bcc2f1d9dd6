package opendata

import (
	"context"
	"sync"

	"github.com/ronanmccormack-ca/areacheck-service/internal/domain"
	"github.com/ronanmccormack-ca/areacheck-service/internal/observability"
)

// CachedClient wraps a Client with an in-memory LRU cache for coordinate
// lookups. Parcel coordinates are stable, so cached hits skip a remote
// round-trip; tax records and neighbourhood queries always go to the
// provider.
type CachedClient struct {
	*Client
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a catalog client.
func NewCachedClient(inner *Client, maxEntries int, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		Client:  inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// FetchCoordinate resolves an address to coordinates, serving repeat
// lookups from the cache. Misses (address not found) are not cached so a
// later provider update can still surface them.
func (c *CachedClient) FetchCoordinate(ctx context.Context, civicNumber, streetName string) (domain.Coordinate, bool, error) {
	key := NormalizeCivicNumber(civicNumber) + "|" + NormalizeStreetName(streetName)
	if coord, ok := c.cache.get(key); ok {
		c.metrics.CoordCache.WithLabelValues("hit").Inc()
		return coord, true, nil
	}
	c.metrics.CoordCache.WithLabelValues("miss").Inc()

	coord, found, err := c.Client.FetchCoordinate(ctx, civicNumber, streetName)
	if err != nil {
		return coord, found, err
	}
	if found {
		c.cache.put(key, coord)
	}
	return coord, found, nil
}

// lruCache is a simple thread-safe LRU cache for coordinates.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Coordinate
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Coordinate{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
