package mapbox

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/couchcryptid/quake-hazard-etl/internal/observability"
	"golang.org/x/sync/singleflight"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Site datasets
// repeat the same handful of cities, so most lookups are hits. Concurrent
// misses for the same key share a single upstream request.
type CachedGeocoder struct {
	inner    domain.Geocoder
	cache    *lruCache[domain.GeocodingResult]
	inflight singleflight.Group
	metrics  *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache[domain.GeocodingResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, name, state string) (domain.GeocodingResult, error) {
	key := "fwd:" + normalizeKey(name) + "|" + normalizeKey(state)
	return c.resolve(ctx, "forward", key, func(ctx context.Context) (domain.GeocodingResult, error) {
		return c.inner.ForwardGeocode(ctx, name, state)
	})
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	return c.resolve(ctx, "reverse", key, func(ctx context.Context) (domain.GeocodingResult, error) {
		return c.inner.ReverseGeocode(ctx, lat, lon)
	})
}

// resolve serves key from the cache or a shared upstream fetch. The fetch is
// detached from the cancellation of whichever caller started it, since other
// callers may be waiting on it; each caller still stops waiting when its own
// context ends.
func (c *CachedGeocoder) resolve(ctx context.Context, method, key string, fetch func(context.Context) (domain.GeocodingResult, error)) (domain.GeocodingResult, error) {
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(key, func() (any, error) {
		result, err := fetch(shared)
		// Empty results are not cached so a site unknown today can resolve later.
		if err == nil && result.Found() {
			c.cache.put(key, result)
		}
		return result, err
	})

	select {
	case <-ctx.Done():
		return domain.GeocodingResult{}, ctx.Err()
	case res := <-ch:
		return res.Val.(domain.GeocodingResult), res.Err
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// lruCache is a mutex-guarded LRU map. The front of order is the most
// recently used entry.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[string]*list.Element
}

type lruEntry[V any] struct {
	key   string
	value V
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry[V]).key)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
