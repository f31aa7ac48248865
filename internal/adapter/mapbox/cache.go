package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/observability"
)

// cellSize is the coordinate rounding used for cache keys, roughly 1 km.
const cellSize = 0.01

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by a
// coarse coordinate cell, so detections that barely move between refreshes
// do not cost another API call.
type CachedGeocoder struct {
	inner   domain.Geocoder
	metrics *observability.Metrics

	mu    sync.Mutex
	size  int
	order *list.List // front is most recently used
	items map[cell]*list.Element
}

type cell struct{ lat, lon int64 }

type cached struct {
	key    cell
	result domain.GeocodingResult
}

// NewCachedGeocoder creates a cache decorator holding at most size entries.
func NewCachedGeocoder(inner domain.Geocoder, size int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		metrics: metrics,
		size:    max(size, 1),
		order:   list.New(),
		items:   make(map[cell]*list.Element),
	}
}

func cellOf(lat, lon float64) cell {
	return cell{lat: int64(math.Round(lat / cellSize)), lon: int64(math.Round(lon / cellSize))}
}

// ReverseGeocode implements domain.Geocoder. Errors and empty results are not
// cached so they are retried on the next refresh.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cellOf(lat, lon)
	if r, ok := c.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return r, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	r, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return r, err
	}
	if r.FormattedAddress != "" {
		c.put(key, r)
	}
	return r, nil
}

// Len reports the number of cached entries.
func (c *CachedGeocoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedGeocoder) get(key cell) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).result, true
}

func (c *CachedGeocoder) put(key cell, r domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cached).result = r
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cached{key: key, result: r})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cached).key)
	}
}
